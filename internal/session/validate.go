package session

import (
	"errors"
	"fmt"

	"github.com/braindump-sh/braindump/internal/registry"
)

// ErrSchemaInvalid reports a canonical record that failed validation.
var ErrSchemaInvalid = errors.New("session: schema invalid")

var validRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
	RoleTool:      true,
}

var validChanges = map[ChangeType]bool{
	ChangeCreated:  true,
	ChangeModified: true,
	ChangeDeleted:  true,
}

// Validate checks a captured session against the canonical schema. Every
// record crossing the pipeline must pass before downstream consumers see
// it.
func Validate(s *Captured) error {
	if s == nil {
		return fmt.Errorf("%w: nil record", ErrSchemaInvalid)
	}
	if s.Version != SchemaVersion {
		return fmt.Errorf("%w: version %q, want %q", ErrSchemaInvalid, s.Version, SchemaVersion)
	}
	if !registry.Valid(s.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrSchemaInvalid, s.Source)
	}
	if s.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrSchemaInvalid)
	}
	if s.Conversation.MessageCount != len(s.Conversation.Messages) {
		return fmt.Errorf("%w: messageCount %d != len(messages) %d",
			ErrSchemaInvalid, s.Conversation.MessageCount, len(s.Conversation.Messages))
	}
	for i, m := range s.Conversation.Messages {
		if !validRoles[m.Role] {
			return fmt.Errorf("%w: message %d has role %q", ErrSchemaInvalid, i, m.Role)
		}
	}
	seen := make(map[string]bool, len(s.FileChanges))
	for _, fc := range s.FileChanges {
		if fc.Path == "" {
			return fmt.Errorf("%w: file change with empty path", ErrSchemaInvalid)
		}
		if seen[fc.Path] {
			return fmt.Errorf("%w: duplicate file change path %q", ErrSchemaInvalid, fc.Path)
		}
		seen[fc.Path] = true
		if !validChanges[fc.Type] {
			return fmt.Errorf("%w: file change %q has type %q", ErrSchemaInvalid, fc.Path, fc.Type)
		}
	}
	return nil
}
