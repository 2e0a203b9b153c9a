package models

import "time"

// Setting kinds stored in the settings table.
const (
	SettingKindOption   = "option"
	SettingKindThemeMod = "theme_mod"
)

// Setting is a single named site value, either a plain option or a theme mod.
type Setting struct {
	Kind      string    `db:"kind" json:"kind"`
	Name      string    `db:"name" json:"name"`
	Value     JSONValue `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
