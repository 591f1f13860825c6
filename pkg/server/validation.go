package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bascanada/forklift-ops/pkg/dispatch"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

const maxPollSize = 10000

// pollParams reads ?role= and ?size=. An absent or empty role means no role
// filter; an absent size means the configured default.
func pollParams(query url.Values) (ty.Opt[string], int, error) {
	var role ty.Opt[string]
	if r := strings.TrimSpace(query.Get("role")); r != "" {
		role = ty.OptWrap(r)
	}

	raw := query.Get("size")
	if raw == "" {
		return role, 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return role, 0, fmt.Errorf("size must be an integer, got %q", raw)
	}
	if size <= 0 || size > maxPollSize {
		return role, 0, fmt.Errorf("size must be between 1 and %d", maxPollSize)
	}
	return role, size, nil
}

func boolParam(query url.Values, name string) (bool, error) {
	raw := query.Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", name, raw)
	}
	return v, nil
}

func validateStep(req *StepRequest) error {
	if strings.TrimSpace(req.Step) == "" {
		return errors.New("step is required")
	}
	return nil
}

func validateMessage(msg *dispatch.Message) error {
	if strings.TrimSpace(msg.Destination) == "" {
		return dispatch.ErrNoDestination
	}
	return nil
}
