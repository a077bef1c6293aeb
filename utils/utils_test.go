package utils

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestFloat64AlmostEqual(t *testing.T) {
	test.That(t, Float64AlmostEqual(1, 1.0000001, 1e-6), test.ShouldBeTrue)
	test.That(t, Float64AlmostEqual(1, 1.1, 1e-6), test.ShouldBeFalse)
	test.That(t, Clamp(-1, 0, 2), test.ShouldEqual, 0)
	test.That(t, Clamp(3, 0, 2), test.ShouldEqual, 2)
	test.That(t, Clamp(1.5, 0, 2), test.ShouldEqual, 1.5)
}

func TestGuard(t *testing.T) {
	released := 0
	acquire := func(fail bool) error {
		guard := NewGuard(func() { released++ })
		defer guard.OnFail()
		if fail {
			return errors.New("failed")
		}
		guard.Success()
		return nil
	}
	test.That(t, acquire(false), test.ShouldBeNil)
	test.That(t, released, test.ShouldEqual, 0)
	test.That(t, acquire(true), test.ShouldNotBeNil)
	test.That(t, released, test.ShouldEqual, 1)
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"box1", "table_top", "gripper:clamp", "a.b-c"} {
		test.That(t, ValidateName(name), test.ShouldBeNil)
	}
	for _, name := range []string{"", "_box", "has space", string(make([]byte, 61))} {
		test.That(t, ValidateName(name), test.ShouldNotBeNil)
	}
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("PROXIMITY_TEST_INT", "6")
	test.That(t, GetenvInt("PROXIMITY_TEST_INT", 2), test.ShouldEqual, 6)
	t.Setenv("PROXIMITY_TEST_INT", "six")
	test.That(t, GetenvInt("PROXIMITY_TEST_INT", 2), test.ShouldEqual, 2)
	t.Setenv("PROXIMITY_TEST_INT", "-1")
	test.That(t, GetenvInt("PROXIMITY_TEST_INT", 2), test.ShouldEqual, 2)
	test.That(t, GetenvInt("PROXIMITY_TEST_UNSET", 3), test.ShouldEqual, 3)
	test.That(t, ParallelFactor, test.ShouldBeGreaterThanOrEqualTo, 1)
}
