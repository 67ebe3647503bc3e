package service

import (
	"alcyxob/fitflow/internal/domain"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// planResponse is the shape the collaborator is asked to return.
type planResponse struct {
	Routine []dayResponse `json:"routine" jsonschema_description:"The days of the routine, one entry per training day."`
}

type dayResponse struct {
	Day       int                `json:"day" jsonschema:"minimum=1,maximum=7" jsonschema_description:"Day number within the 7-day cycle."`
	DayName   string             `json:"dayName,omitempty" jsonschema_description:"Weekday label, e.g. Monday."`
	Focus     string             `json:"focus,omitempty" jsonschema_description:"Muscle groups or theme of the day."`
	Exercises []exerciseResponse `json:"exercises" jsonschema_description:"Exercises in the order they are performed."`
}

type exerciseResponse struct {
	Name  string     `json:"name"`
	Sets  int        `json:"sets" jsonschema:"minimum=1"`
	Reps  flexString `json:"reps" jsonschema_description:"Repetitions, may be a range such as 8-10."`
	Rest  flexString `json:"rest" jsonschema_description:"Rest between sets, e.g. 90 seconds."`
	Notes string     `json:"notes,omitempty"`
}

// flexString accepts a JSON string or number; models often write "reps": 10.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf("")}
	}
	*f = flexString(n.String())
	return nil
}

// PlanResponseSchema describes the expected reply, for providers that accept a schema.
func PlanResponseSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&planResponse{})
}

// ParsePlanResponse finds the first JSON object in text and maps it into a valid Plan.
func ParsePlanResponse(text string) (domain.Plan, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return nil, ErrUnparsableResponse
	}

	var resp planResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidPlanShape, typeErr.Field, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	plan := make(domain.Plan, 0, len(resp.Routine))
	for _, d := range resp.Routine {
		day := domain.DayPlan{
			Day:       d.Day,
			DayName:   strings.TrimSpace(d.DayName),
			Focus:     strings.TrimSpace(d.Focus),
			Exercises: make([]domain.Exercise, 0, len(d.Exercises)),
		}
		for _, e := range d.Exercises {
			day.Exercises = append(day.Exercises, domain.Exercise{
				Name:  strings.TrimSpace(e.Name),
				Sets:  e.Sets,
				Reps:  string(e.Reps),
				Rest:  string(e.Rest),
				Notes: strings.TrimSpace(e.Notes),
			})
		}
		plan = append(plan, day)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlanShape, err)
	}
	return plan, nil
}

// ExtractJSON returns the first balanced {...} substring of text. Braces inside JSON
// strings do not count. An opening brace that never closes is skipped.
func ExtractJSON(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := balancedEnd(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// BuildPrompt writes the generation request for profile. The output is a pure
// function of the profile's name, height, weight and goal.
func BuildPrompt(p domain.Profile) string {
	var b strings.Builder
	b.WriteString("Create a detailed 7-day gym routine for:\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Height: %s cm\n", strconv.FormatFloat(p.Height, 'f', -1, 64))
	fmt.Fprintf(&b, "Weight: %s kg\n", strconv.FormatFloat(p.Weight, 'f', -1, 64))
	fmt.Fprintf(&b, "Goal: %s\n\n", p.FitnessGoal.Label())
	b.WriteString(`Provide the routine in JSON format with this exact structure:
{
  "routine": [
    {
      "day": 1,
      "dayName": "Monday",
      "focus": "Chest & Triceps",
      "exercises": [
        {
          "name": "Barbell Bench Press",
          "sets": 4,
          "reps": "8-10",
          "rest": "90 seconds",
          "notes": "Warm up with lighter weights"
        }
      ]
    }
  ]
}

`)
	fmt.Fprintf(&b, "Make the routine realistic, safe, and tailored to the %s goal. Include 5-7 exercises per day.", p.FitnessGoal.Label())
	return b.String()
}
