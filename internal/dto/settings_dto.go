package dto

import "encoding/json"

// UpdateSettingsRequest writes one or more allowlisted settings. Options and
// theme mods use the same shape on different routes.
type UpdateSettingsRequest struct {
	Values map[string]any `json:"values" validate:"required,min=1"`
	DryRun bool           `json:"dry_run"`
}

// settingsReservedKeys are request envelope fields, never setting names.
var settingsReservedKeys = map[string]struct{}{
	"values":  {},
	"updates": {},
	"dry_run": {},
}

// UnmarshalJSON accepts either a values/updates wrapper or setting names at
// the top level of the payload. The wrapper wins when present.
func (r *UpdateSettingsRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["dry_run"]; ok {
		if err := json.Unmarshal(v, &r.DryRun); err != nil {
			return err
		}
	}
	for _, wrapper := range []string{"values", "updates"} {
		if v, ok := raw[wrapper]; ok {
			return json.Unmarshal(v, &r.Values)
		}
	}

	values := make(map[string]any, len(raw))
	for name, v := range raw {
		if _, reserved := settingsReservedKeys[name]; reserved {
			continue
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return err
		}
		values[name] = value
	}
	if len(values) > 0 {
		r.Values = values
	}
	return nil
}

// SettingsResponse is the read view: current values for the allowlisted keys.
type SettingsResponse struct {
	Values map[string]any `json:"values"`
}

// RollbackRequest restores a snapshot's old value onto its target.
type RollbackRequest struct {
	SnapshotID int64 `json:"snapshot_id" validate:"required,min=1"`
	DryRun     bool  `json:"dry_run"`
}

// ListSnapshotsQuery filters snapshot listings.
type ListSnapshotsQuery struct {
	TargetType string `form:"target_type" validate:"omitempty,oneof=option theme_mod"`
	TargetKey  string `form:"target_key" validate:"omitempty,max=191"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	Limit      int    `form:"limit" validate:"omitempty,min=1,max=200"`
}
