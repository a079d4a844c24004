package nodenet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryWorldAvailableDataSourcesSortedAndDeduped(t *testing.T) {
	w := NewInMemoryWorld()
	w.SetDataSource("light", 1)
	w.SetDataSource("temperature", 2)
	w.SetDataSource("light", 3)

	assert.Equal(t, []string{"light", "temperature"}, w.GetAvailableDataSources("any-nodenet"))
}

func TestInMemoryWorldAvailableDataTargetsSeenBeforeFirstWrite(t *testing.T) {
	w := NewInMemoryWorld()
	w.DeclareDataTarget("motor_left")

	assert.Equal(t, []string{"motor_left"}, w.GetAvailableDataTargets("any-nodenet"))

	w.WriteDataTarget("motor_right", 5)
	assert.Equal(t, []string{"motor_left", "motor_right"}, w.GetAvailableDataTargets("any-nodenet"))
}
