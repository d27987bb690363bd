// Package api is the JSON client for the Lythe server's REST surface. The
// transport it is handed already deals with auth headers, token refresh, and
// the single 401 retry.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// envelope mirrors the server's response wrapper.
type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Friend is the server-side directory entry payload.
type Friend struct {
	FriendID       string `json:"friendId"`
	Username       string `json:"username"`
	Status         int    `json:"status"`
	Signature      string `json:"signature"`
	Avatar         string `json:"avatar"`
	RelationStatus int    `json:"relationStatus"`
	Remark         string `json:"remark"`
	CreateTime     int64  `json:"createTime"`
	UpdateTime     int64  `json:"updateTime"`
}

// Group is the server-side group payload.
type Group struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ErrEmptyBody marks a 2xx response whose envelope carried no data.
var ErrEmptyBody = errors.New("empty response body")

// StatusError reports a non-2xx HTTP response or a non-zero envelope code.
type StatusError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (http %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server error (http %d, code %d)", e.StatusCode, e.Code)
}

// IsUnauthorized reports whether err is a terminal auth failure.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
