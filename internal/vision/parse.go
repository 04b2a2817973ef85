package vision

import "strings"

// ParseResponse parses a model response in the prompt's line format:
// name | brand | series | color | scale, one car per line.
func ParseResponse(raw string) []DetectedCar {
	cars := make([]DetectedCar, 0)
	for _, line := range strings.Split(raw, "\n") {
		if car := ParseLine(line); car != nil {
			cars = append(cars, *car)
		}
	}
	return cars
}

// ParseLine parses a single response line. Lines without a pipe separator
// are indistinguishable from conversational preamble and return nil.
func ParseLine(line string) *DetectedCar {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, "|") {
		return nil
	}

	parts := strings.Split(line, "|")
	car := DetectedCar{Name: strings.TrimSpace(parts[0])}
	if car.Name == "" {
		return nil
	}
	fields := []*string{nil, &car.Brand, &car.Series, &car.Color, &car.Scale}
	for i := 1; i < len(parts) && i < len(fields); i++ {
		v := strings.TrimSpace(parts[i])
		if strings.EqualFold(v, "unknown") || v == "-" {
			v = ""
		}
		*fields[i] = v
	}
	return &car
}
