// Package authing owns user accounts: registration, credential checks and the
// id<->username resolution every response passes through.
package authing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"tandem/api/internal/concept"
	"tandem/api/internal/store"
)

type User struct {
	ID       string
	Username string
}

type Concept struct {
	users store.Collection
}

func New(users store.Collection) *Concept {
	return &Concept{users: users}
}

func (c *Concept) Create(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, concept.Validation("username and password are required")
	}
	if _, err := c.users.ReadOne(ctx, store.Where(store.Eq("username", username))); err == nil {
		return User{}, concept.NotAllowed("username_taken", "username %s is already taken", username)
	} else if !errors.Is(err, store.ErrNoDoc) {
		return User{}, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := c.users.CreateOne(ctx, store.Doc{
		"username":     username,
		"passwordHash": string(hash),
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{ID: id, Username: username}, nil
}

func (c *Concept) Authenticate(ctx context.Context, username, password string) (User, error) {
	doc, err := c.users.ReadOne(ctx, store.Where(store.Eq("username", strings.TrimSpace(username))))
	if errors.Is(err, store.ErrNoDoc) {
		return User{}, concept.NotAllowed("bad_credentials", "invalid username or password")
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	hash := store.AsString(doc, "passwordHash")
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, concept.NotAllowed("bad_credentials", "invalid username or password")
	}
	return fromDoc(doc), nil
}

func (c *Concept) ByUsername(ctx context.Context, username string) (User, error) {
	doc, err := c.users.ReadOne(ctx, store.Where(store.Eq("username", username)))
	if errors.Is(err, store.ErrNoDoc) {
		return User{}, concept.NotFound("user_missing", "user %s does not exist", username)
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) ByID(ctx context.Context, id string) (User, error) {
	doc, err := c.users.ReadOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDoc) {
		return User{}, concept.NotFound("user_missing", "user %s does not exist", id).WithUsers(id)
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	return fromDoc(doc), nil
}

func (c *Concept) All(ctx context.Context) ([]User, error) {
	docs, err := c.users.ReadMany(ctx, nil, store.ReadOptions{SortNewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, fromDoc(doc))
	}
	return users, nil
}

func (c *Concept) UpdateUsername(ctx context.Context, userID, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return concept.Validation("username is required")
	}
	if doc, err := c.users.ReadOne(ctx, store.Where(store.Eq("username", username))); err == nil {
		if store.ID(doc) != userID {
			return concept.NotAllowed("username_taken", "username %s is already taken", username)
		}
		return nil
	} else if !errors.Is(err, store.ErrNoDoc) {
		return fmt.Errorf("check username: %w", err)
	}
	if _, err := c.users.PartialUpdateOne(ctx, store.ByID(userID), store.Set("username", username)); err != nil {
		if errors.Is(err, store.ErrNoDoc) {
			return concept.NotFound("user_missing", "user %s does not exist", userID).WithUsers(userID)
		}
		return fmt.Errorf("update username: %w", err)
	}
	return nil
}

func (c *Concept) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return concept.Validation("new password is required")
	}
	doc, err := c.users.ReadOne(ctx, store.ByID(userID))
	if errors.Is(err, store.ErrNoDoc) {
		return concept.NotFound("user_missing", "user %s does not exist", userID).WithUsers(userID)
	}
	if err != nil {
		return fmt.Errorf("read user: %w", err)
	}
	hash := store.AsString(doc, "passwordHash")
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)) != nil {
		return concept.NotAllowed("bad_credentials", "current password is incorrect")
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := c.users.PartialUpdateOne(ctx, store.ByID(userID), store.Set("passwordHash", string(newHash))); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (c *Concept) Delete(ctx context.Context, userID string) error {
	if err := c.users.DeleteOne(ctx, store.ByID(userID)); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func fromDoc(doc store.Doc) User {
	return User{
		ID:       store.ID(doc),
		Username: store.AsString(doc, "username"),
	}
}
