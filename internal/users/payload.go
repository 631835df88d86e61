package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"geousers/pkg/geo"
	"geousers/pkg/models"

	"github.com/go-playground/validator/v10"
)

const (
	keyEmail     = "email"
	keyName      = "name"
	keyLatitude  = "latitude"
	keyLongitude = "longitude"
)

var createRules = map[string]interface{}{
	keyEmail: "required,email",
	keyName:  "required",
}

// change is a parsed write payload: document fields plus an optional point.
type change struct {
	fields   map[string]any
	location *models.Location
}

// keys returns the top-level payload keys that the change applies.
func (c change) keys() []string {
	out := make([]string, 0, len(c.fields)+1)
	for k := range c.fields {
		out = append(out, k)
	}
	if c.location != nil {
		out = append(out, models.FieldLocation)
	}
	sort.Strings(out)
	return out
}

func parseCreate(v *validator.Validate, payload map[string]any) (change, error) {
	if payload == nil {
		return change{}, errors.New("request body must be a JSON object")
	}
	for _, key := range []string{keyEmail, keyName} {
		if err := requireString(payload, key); err != nil {
			return change{}, err
		}
	}
	if errs := v.ValidateMap(payload, createRules); len(errs) > 0 {
		return change{}, validationError(errs)
	}
	return split(payload)
}

func parseUpdate(v *validator.Validate, payload map[string]any) (change, error) {
	if len(payload) == 0 {
		return change{}, errors.New("request body must contain at least one field")
	}

	rules := map[string]interface{}{}
	for key, rule := range createRules {
		if _, ok := payload[key]; !ok {
			continue
		}
		if err := requireString(payload, key); err != nil {
			return change{}, err
		}
		rules[key] = rule
	}
	if len(rules) > 0 {
		if errs := v.ValidateMap(payload, rules); len(errs) > 0 {
			return change{}, validationError(errs)
		}
	}

	c, err := split(payload)
	if err != nil {
		return change{}, err
	}
	if len(c.fields) == 0 && c.location == nil {
		return change{}, errors.New("no updatable fields in request body")
	}
	return c, nil
}

func requireString(payload map[string]any, key string) error {
	s, ok := payload[key].(string)
	if !ok {
		if _, present := payload[key]; present {
			return fmt.Errorf("%s must be a string", key)
		}
		return fmt.Errorf("%s is required", key)
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", key)
	}
	return nil
}

// split separates the location from document fields and drops store-owned keys.
func split(payload map[string]any) (change, error) {
	c := change{fields: make(map[string]any, len(payload))}
	for k, val := range payload {
		switch k {
		case models.FieldID, models.FieldCreatedAt, models.FieldUpdatedAt:
			continue
		case models.FieldLocation:
			loc, err := parseLocation(val)
			if err != nil {
				return change{}, err
			}
			c.location = loc
		default:
			c.fields[k] = val
		}
	}
	return c, nil
}

// parseLocation returns nil when either coordinate is missing.
func parseLocation(raw any) (*models.Location, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("location must be an object")
	}

	latRaw, hasLat := m[keyLatitude]
	lonRaw, hasLon := m[keyLongitude]
	if !hasLat || !hasLon {
		return nil, nil
	}

	lat, err := toFloat(keyLatitude, latRaw)
	if err != nil {
		return nil, err
	}
	lon, err := toFloat(keyLongitude, lonRaw)
	if err != nil {
		return nil, err
	}
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return &models.Location{Latitude: lat, Longitude: lon}, nil
}

func toFloat(name string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("location.%s must be a number", name)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("location.%s must be a number", name)
	}
}

func validationError(errs map[string]interface{}) error {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		switch fe := errs[f].(type) {
		case validator.ValidationErrors:
			for _, e := range fe {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", f, e.Tag()))
			}
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", f))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
