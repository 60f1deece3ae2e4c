package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TitleList stores previously generated article titles as a JSON array.
// Order is insertion order; entries are unique.
type TitleList []string

// Value implements driver.Valuer for database serialization.
func (t TitleList) Value() (driver.Value, error) {
	cleaned := t.Clean()
	data, errMarshal := json.Marshal([]string(cleaned))
	if errMarshal != nil {
		return nil, fmt.Errorf("title list marshal: %w", errMarshal)
	}
	return data, nil
}

// Scan implements sql.Scanner for database deserialization.
func (t *TitleList) Scan(value any) error {
	if t == nil {
		return fmt.Errorf("title list scan: nil receiver")
	}
	if value == nil {
		*t = TitleList{}
		return nil
	}

	switch typed := value.(type) {
	case []byte:
		return parseTitleListFromBytes(t, typed)
	case string:
		return parseTitleListFromBytes(t, []byte(typed))
	default:
		return fmt.Errorf("title list scan: unsupported type %T", value)
	}
}

func parseTitleListFromBytes(target *TitleList, data []byte) error {
	if target == nil {
		return fmt.Errorf("title list scan: nil target")
	}
	if len(data) == 0 {
		*target = TitleList{}
		return nil
	}

	var list []string
	if errList := json.Unmarshal(data, &list); errList == nil {
		*target = TitleList(list).Clean()
		return nil
	}

	var single string
	if errSingle := json.Unmarshal(data, &single); errSingle == nil {
		*target = TitleList{single}.Clean()
		return nil
	}

	return fmt.Errorf("title list scan: invalid json")
}

// Clean normalizes the list by trimming entries and removing blanks and
// duplicates while preserving first-seen order.
func (t TitleList) Clean() TitleList {
	if len(t) == 0 {
		return TitleList{}
	}
	seen := make(map[string]struct{}, len(t))
	cleaned := make(TitleList, 0, len(t))
	for _, title := range t {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		cleaned = append(cleaned, title)
	}
	if len(cleaned) == 0 {
		return TitleList{}
	}
	return cleaned
}

// Append returns the list with title as its last entry. A title already in
// the list moves to the end so the list stays ordered by most recent use.
func (t TitleList) Append(title string) TitleList {
	title = strings.TrimSpace(title)
	if title == "" {
		return t.Clean()
	}
	cleaned := t.Clean()
	out := make(TitleList, 0, len(cleaned)+1)
	for _, existing := range cleaned {
		if existing != title {
			out = append(out, existing)
		}
	}
	return append(out, title)
}

// Tail returns at most n entries from the end of the list, preserving order.
func (t TitleList) Tail(n int) TitleList {
	cleaned := t.Clean()
	if n <= 0 || len(cleaned) <= n {
		return cleaned
	}
	return cleaned[len(cleaned)-n:]
}

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Credits int64 `gorm:"not null;default:0"` // Credit balance; mutated only by the ledger.

	Titles TitleList `gorm:"type:jsonb;not null;default:'[]'"` // Previously generated article titles.

	RateLimit int `gorm:"not null;default:0"` // Generate requests per second; 0 means the global default.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
