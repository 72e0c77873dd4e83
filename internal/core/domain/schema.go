package domain

import (
	"errors"
	"fmt"
)

// SchemaVersion is the version of the built-in unified schema.
const SchemaVersion = "1.0.0"

// FieldType is the storage type of a schema field.
type FieldType string

// Field types.
const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDateTime FieldType = "datetime"
	FieldJSON     FieldType = "json"
)

// RelationshipType is the cardinality of a relationship.
type RelationshipType string

// Relationship cardinalities.
const (
	OneToOne   RelationshipType = "one-to-one"
	OneToMany  RelationshipType = "one-to-many"
	ManyToMany RelationshipType = "many-to-many"
)

// FieldDefinition describes one field of an entity.
type FieldDefinition struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Unique      bool      `json:"unique,omitempty"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description,omitempty"`
}

// IndexDefinition describes an index over one or more fields.
type IndexDefinition struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique"`
}

// EntityDefinition is one entity of the unified schema.
type EntityDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDefinition `json:"fields"`
	Indexes     []IndexDefinition `json:"indexes"`
}

// Field returns the named field.
func (e *EntityDefinition) Field(name string) (FieldDefinition, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Relationship links two entities.
type Relationship struct {
	Name          string           `json:"name"`
	From          string           `json:"from"`
	To            string           `json:"to"`
	Type          RelationshipType `json:"type"`
	CascadeDelete bool             `json:"cascade_delete"`
}

// UnifiedSchema is the canonical data model records are reconciled into.
type UnifiedSchema struct {
	Version       string             `json:"version"`
	Entities      []EntityDefinition `json:"entities"`
	Relationships []Relationship     `json:"relationships"`
}

// Entity returns the named entity.
func (s *UnifiedSchema) Entity(name string) (*EntityDefinition, bool) {
	for i := range s.Entities {
		if s.Entities[i].Name == name {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// Validate checks the schema is internally consistent: names are unique,
// field types are known, indexes cover existing fields and relationships
// reference existing entities.
func (s *UnifiedSchema) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("%w: schema version is empty", ErrInvalidInput)
	}

	var errs []error
	entities := make(map[string]bool, len(s.Entities))
	for i := range s.Entities {
		e := &s.Entities[i]
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("entity %d has no name", i))
			continue
		}
		if entities[e.Name] {
			errs = append(errs, fmt.Errorf("duplicate entity %s", e.Name))
		}
		entities[e.Name] = true
		errs = append(errs, validateEntity(e)...)
	}

	names := make(map[string]bool, len(s.Relationships))
	for _, r := range s.Relationships {
		if names[r.Name] {
			errs = append(errs, fmt.Errorf("duplicate relationship %s", r.Name))
		}
		names[r.Name] = true
		if !entities[r.From] {
			errs = append(errs, fmt.Errorf("relationship %s: unknown entity %s", r.Name, r.From))
		}
		if !entities[r.To] {
			errs = append(errs, fmt.Errorf("relationship %s: unknown entity %s", r.Name, r.To))
		}
		switch r.Type {
		case OneToOne, OneToMany, ManyToMany:
		default:
			errs = append(errs, fmt.Errorf("relationship %s: unknown type %q", r.Name, r.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

func validateEntity(e *EntityDefinition) []error {
	var errs []error
	fields := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		if fields[f.Name] {
			errs = append(errs, fmt.Errorf("entity %s: duplicate field %s", e.Name, f.Name))
		}
		fields[f.Name] = true
		switch f.Type {
		case FieldString, FieldText, FieldNumber, FieldBoolean, FieldDateTime, FieldJSON:
		default:
			errs = append(errs, fmt.Errorf("entity %s: field %s has unknown type %q", e.Name, f.Name, f.Type))
		}
	}
	for _, idx := range e.Indexes {
		if len(idx.Fields) == 0 {
			errs = append(errs, fmt.Errorf("entity %s: index %s has no fields", e.Name, idx.Name))
		}
		for _, name := range idx.Fields {
			if !fields[name] {
				errs = append(errs, fmt.Errorf("entity %s: index %s references unknown field %s", e.Name, idx.Name, name))
			}
		}
	}
	return errs
}

// Clone returns a deep copy so callers cannot mutate the shared schema.
func (s *UnifiedSchema) Clone() *UnifiedSchema {
	out := &UnifiedSchema{
		Version:       s.Version,
		Entities:      make([]EntityDefinition, len(s.Entities)),
		Relationships: append([]Relationship{}, s.Relationships...),
	}
	for i, e := range s.Entities {
		c := e
		c.Fields = append([]FieldDefinition{}, e.Fields...)
		c.Indexes = make([]IndexDefinition, len(e.Indexes))
		for j, idx := range e.Indexes {
			idx.Fields = append([]string{}, idx.Fields...)
			c.Indexes[j] = idx
		}
		out.Entities[i] = c
	}
	return out
}

// DefaultUnifiedSchema builds the built-in schema and validates it.
func DefaultUnifiedSchema() (*UnifiedSchema, error) {
	s := &UnifiedSchema{
		Version: SchemaVersion,
		Entities: []EntityDefinition{
			userEntity(),
			platformEntity("Task", "Unified task management across all platforms", "task", []FieldDefinition{
				{Name: "title", Type: FieldString, Required: true, Description: "Task title"},
				{Name: "description", Type: FieldText, Description: "Task description"},
				{Name: "status", Type: FieldString, Required: true, Description: "Task status"},
				{Name: "priority", Type: FieldString, Description: "Task priority"},
				{Name: "dueDate", Type: FieldDateTime, Description: "Due date"},
				{Name: "assigneeId", Type: FieldString, Description: "Assigned user ID"},
			}, "status"),
			platformEntity("Document", "Unified document management across all platforms", "document", []FieldDefinition{
				{Name: "title", Type: FieldString, Required: true, Description: "Document title"},
				{Name: "content", Type: FieldText, Description: "Document content"},
				{Name: "type", Type: FieldString, Required: true, Description: "Document type"},
				{Name: "url", Type: FieldString, Description: "Document URL"},
				{Name: "size", Type: FieldNumber, Description: "Document size in bytes"},
			}, "type"),
			platformEntity("Notification", "Unified notification system across all platforms", "notification", []FieldDefinition{
				{Name: "title", Type: FieldString, Required: true, Description: "Notification title"},
				{Name: "message", Type: FieldText, Required: true, Description: "Notification message"},
				{Name: "type", Type: FieldString, Required: true, Description: "Notification type"},
				{Name: "priority", Type: FieldString, Description: "Notification priority"},
				{Name: "read", Type: FieldBoolean, Required: true, Default: false, Description: "Read status"},
			}, "read"),
		},
		Relationships: []Relationship{
			{Name: "user_tasks", From: "User", To: "Task", Type: OneToMany, CascadeDelete: true},
			{Name: "user_documents", From: "User", To: "Document", Type: OneToMany, CascadeDelete: true},
			{Name: "user_notifications", From: "User", To: "Notification", Type: OneToMany, CascadeDelete: true},
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustDefaultUnifiedSchema is DefaultUnifiedSchema that panics on error.
// The built-in definition is static, so an error is a programming bug.
func MustDefaultUnifiedSchema() *UnifiedSchema {
	s, err := DefaultUnifiedSchema()
	if err != nil {
		panic(fmt.Sprintf("built-in unified schema is invalid: %v", err))
	}
	return s
}

func timestampFields() []FieldDefinition {
	return []FieldDefinition{
		{Name: "createdAt", Type: FieldDateTime, Required: true, Description: "Creation timestamp"},
		{Name: "updatedAt", Type: FieldDateTime, Required: true, Description: "Last update timestamp"},
	}
}

func userEntity() EntityDefinition {
	fields := []FieldDefinition{
		{Name: "id", Type: FieldString, Required: true, Unique: true, Description: "Unique user identifier"},
		{Name: "email", Type: FieldString, Required: true, Unique: true, Description: "User email address"},
		{Name: "name", Type: FieldString, Required: true, Description: "User full name"},
		{Name: "avatar", Type: FieldString, Description: "User avatar URL"},
		{Name: "timezone", Type: FieldString, Description: "User timezone"},
		{Name: "preferences", Type: FieldJSON, Description: "User preferences"},
	}
	return EntityDefinition{
		Name:        "User",
		Description: "Unified user profile across all platforms",
		Fields:      append(fields, timestampFields()...),
		Indexes: []IndexDefinition{
			{Name: "idx_user_email", Fields: []string{"email"}, Unique: true},
			{Name: "idx_user_created", Fields: []string{"createdAt"}},
		},
	}
}

// platformEntity builds an entity owned by a user and sourced from an
// external platform. body sits between userId and platformId.
func platformEntity(name, description, prefix string, body []FieldDefinition, indexed string) EntityDefinition {
	fields := []FieldDefinition{
		{Name: "id", Type: FieldString, Required: true, Unique: true, Description: "Unique " + prefix + " identifier"},
		{Name: "userId", Type: FieldString, Required: true, Description: "Associated user ID"},
	}
	fields = append(fields, body...)
	fields = append(fields,
		FieldDefinition{Name: "platformId", Type: FieldString, Required: true, Description: "Source platform ID"},
		FieldDefinition{Name: "externalId", Type: FieldString, Description: "External platform " + prefix + " ID"},
	)
	fields = append(fields, timestampFields()...)
	return EntityDefinition{
		Name:        name,
		Description: description,
		Fields:      fields,
		Indexes: []IndexDefinition{
			{Name: "idx_" + prefix + "_user", Fields: []string{"userId"}},
			{Name: "idx_" + prefix + "_" + indexed, Fields: []string{indexed}},
			{Name: "idx_" + prefix + "_platform", Fields: []string{"platformId", "externalId"}, Unique: true},
		},
	}
}
