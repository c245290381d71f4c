// Package common holds generic response assertion steps.
package common

import (
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	LastStatus() int
	GetResponseField(field string) (any, error)
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the response status should be (\d+)$`, steps.assertStatus)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.assertNumberField)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.assertBoolField)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.assertErrorCode)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) assertStatus(expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) assertNumberField(field string, expected int) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	n, ok := v.(json.Number)
	if !ok {
		// encoding/json decodes into float64 by default
		f, isFloat := v.(float64)
		if !isFloat {
			return fmt.Errorf("field %q is not a number: %v", field, v)
		}
		if int(f) != expected {
			return fmt.Errorf("expected %q to be %d, got %v", field, expected, f)
		}
		return nil
	}
	got, err := n.Int64()
	if err != nil {
		return err
	}
	if got != int64(expected) {
		return fmt.Errorf("expected %q to be %d, got %d", field, expected, got)
	}
	return nil
}

func (s *commonSteps) assertBoolField(field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("field %q is not a bool: %v", field, v)
	}
	if fmt.Sprintf("%t", b) != expected {
		return fmt.Errorf("expected %q to be %s, got %t", field, expected, b)
	}
	return nil
}

func (s *commonSteps) assertErrorCode(expected string) error {
	v, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if v != expected {
		return fmt.Errorf("expected error code %q, got %v", expected, v)
	}
	return nil
}
