package entities

import "time"

// Note is a free-form text record with tags.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	TextColor string    `json:"textColor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasTag reports exact tag membership.
func (n Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Matches reports whether keyword occurs in the title, content or any tag.
func (n Note) Matches(keyword string) bool {
	if keyword == "" {
		return true
	}
	if ContainsFold(n.Title, keyword) || ContainsFold(n.Content, keyword) {
		return true
	}
	for _, t := range n.Tags {
		if ContainsFold(t, keyword) {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	n.Tags = cloneStrings(n.Tags)
	return n
}

// NoteStats summarises the note collection.
type NoteStats struct {
	Total       int            `json:"total"`
	WithTags    int            `json:"withTags"`
	WithoutTags int            `json:"withoutTags"`
	ThisWeek    int            `json:"thisWeek"`
	Completed   int            `json:"completed"`
	TagStats    map[string]int `json:"tagStats"`
}
