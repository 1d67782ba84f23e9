package settings

import (
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Update is a partial settings change. Nil fields are left untouched.
type Update struct {
	VotePolicy         *string   `mapstructure:"vote_policy"`
	VoteTTLSeconds     *int      `mapstructure:"vote_ttl_seconds"`
	MinVotesToOverride *int      `mapstructure:"min_votes_to_override"`
	MaxDurationMs      *int64    `mapstructure:"max_duration_ms"`
	BannedArtists      *[]string `mapstructure:"banned_artists"`
	BannedTracks       *[]string `mapstructure:"banned_tracks"`
	BannedUsers        *[]string `mapstructure:"banned_users"`
}

// FieldError describes a rejected field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// Apply returns base with every valid field of u applied. Invalid fields are
// reported and skipped; valid fields are applied together.
func (u Update) Apply(base Settings) (Settings, []FieldError) {
	next := base.Clone()
	var rejected []FieldError

	check := func(field string, value any, tag string) bool {
		if err := validate.Var(value, tag); err != nil {
			rejected = append(rejected, FieldError{Field: field, Reason: reasonFor(err, tag)})
			return false
		}
		return true
	}

	if u.VotePolicy != nil {
		if v := strings.TrimSpace(*u.VotePolicy); check("vote_policy", v, "oneof=perTrack perRound ttl") {
			next.VotePolicy = v
		}
	}
	if u.VoteTTLSeconds != nil && check("vote_ttl_seconds", *u.VoteTTLSeconds, "gte=1") {
		next.VoteTTLSeconds = *u.VoteTTLSeconds
	}
	if u.MinVotesToOverride != nil && check("min_votes_to_override", *u.MinVotesToOverride, "gte=1") {
		next.MinVotesToOverride = *u.MinVotesToOverride
	}
	if u.MaxDurationMs != nil && check("max_duration_ms", *u.MaxDurationMs, "gte=60000") {
		next.MaxDurationMs = *u.MaxDurationMs
	}
	if u.BannedArtists != nil {
		next.BannedArtists = CleanList(*u.BannedArtists)
	}
	if u.BannedTracks != nil {
		next.BannedTracks = CleanList(*u.BannedTracks)
	}
	if u.BannedUsers != nil {
		next.BannedUsers = CleanList(*u.BannedUsers)
	}

	return next, rejected
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u == Update{}
}

func reasonFor(err error, tag string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return "must satisfy " + tag
	}
	return err.Error()
}

// DecodeUpdate decodes an update from loosely typed values such as form
// fields or YAML maps. Numbers may be strings and lists may be a single
// newline, comma or semicolon separated string. Keys that fail to decode are
// reported and skipped.
func DecodeUpdate(values map[string]any) (Update, []FieldError, error) {
	var u Update
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &u,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       splitListHook,
	})
	if err != nil {
		return Update{}, nil, errors.Wrap(err, "failed to create decoder")
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var rejected []FieldError
	for _, k := range keys {
		if err := decoder.Decode(map[string]any{k: values[k]}); err != nil {
			rejected = append(rejected, FieldError{Field: k, Reason: decodeReason(err)})
		}
	}
	return u, rejected, nil
}

func decodeReason(err error) string {
	var merr *mapstructure.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		return merr.Errors[0]
	}
	return err.Error()
}

// DecodeSettings decodes full settings from a map, applying defaults for
// missing fields. It does not validate.
func DecodeSettings(values map[string]any) (Settings, error) {
	s := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       splitListHook,
	})
	if err != nil {
		return Settings{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode settings")
	}
	return s, nil
}

// splitListHook turns a string into a list when the target is []string.
func splitListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	return SplitList(data.(string)), nil
}
