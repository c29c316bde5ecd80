package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// UserUpdateRequest changes profile fields. Empty fields are left as they are.
type UserUpdateRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// ChangePasswordRequest replaces the account password.
type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword,omitempty"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ErrPasswordMismatch is returned when the new password and its
// confirmation differ. No request is made.
var ErrPasswordMismatch = errors.New("new password and confirmation do not match")

// UpdateUser changes the profile of userID and returns the stored user.
func (c *Client) UpdateUser(ctx context.Context, userID string, req UserUpdateRequest) (*User, error) {
	res, err := call[User](ctx, c, http.MethodPost, "/user/update/"+url.PathEscape(userID), nil, req)
	if err != nil {
		return nil, err
	}
	out, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the password of userID.
func (c *Client) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if req.NewPassword == "" {
		return errors.New("new password is required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	res, err := call[json.RawMessage](ctx, c, http.MethodPost, "/user/change-password/"+url.PathEscape(userID), nil, req)
	if err != nil {
		return err
	}
	_, err = unwrap(res)
	return err
}

// DeleteUser removes the account of userID.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	res, err := call[json.RawMessage](ctx, c, http.MethodDelete, "/user/delete/"+url.PathEscape(userID), nil, nil)
	if err != nil {
		return err
	}
	_, err = unwrap(res)
	return err
}
