package grbl

import (
	"testing"

	"github.com/mastercactapus/grblstream/coord"
	"github.com/mastercactapus/grblstream/machine"
	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	r, err := ParseStatus("<Idle|MPos:0.000,0.000,0.000|WPos:0.000,0.000,0.000>")
	assert.NoError(t, err)
	assert.Equal(t, machine.StatusIdle, r.State)
	assert.Equal(t, "Idle", r.StateText)
	assert.Equal(t, &coord.Point{}, r.MPos)
	assert.Equal(t, &coord.Point{}, r.WPos)
	assert.Nil(t, r.WCO)
	assert.Nil(t, r.Buffer)
	assert.Nil(t, r.Overrides)

	r, err = ParseStatus("<Run|MPos:1.000,2.000,3.000|Bf:15,128|FS:1500.0,12000>")
	assert.NoError(t, err)
	assert.Equal(t, machine.StatusRun, r.State)
	assert.Equal(t, &coord.Point{X: 1, Y: 2, Z: 3}, r.MPos)
	assert.Equal(t, &machine.Buffer{PlannerFree: 15, RxFree: 128}, r.Buffer)
	assert.Equal(t, 1500.0, *r.FeedRate)
	assert.Equal(t, 12000.0, *r.SpindleSpeed)

	r, err = ParseStatus("<Hold:0|MPos:1.000,1.000,1.000|Ov:120,100,90>")
	assert.NoError(t, err)
	assert.Equal(t, machine.StatusHold, r.State)
	assert.Equal(t, "Hold:0", r.StateText)
	assert.Equal(t, &machine.Overrides{Feed: 120, Rapid: 100, Spindle: 90}, r.Overrides)
}

func TestParseStatus_WCO(t *testing.T) {
	r, err := ParseStatus("<Idle|MPos:10.000,5.000,-2.000|WCO:1.000,1.000,0.000>")
	assert.NoError(t, err)
	assert.Equal(t, &coord.Point{X: 10, Y: 5, Z: -2}, r.MPos)
	assert.Equal(t, &coord.Point{X: 1, Y: 1, Z: 0}, r.WCO)
	assert.Nil(t, r.WPos)
}

func TestParseStatus_LegacyFields(t *testing.T) {
	r, err := ParseStatus("<Run|MPos:0,0,0|WPos:0,0,0|F:1500.0|S:1200>")
	assert.NoError(t, err)
	assert.Equal(t, 1500.0, *r.FeedRate)
	assert.Equal(t, 1200.0, *r.SpindleSpeed)
}

func TestParseStatus_MultiAxis(t *testing.T) {
	// rotary axes beyond XYZ are validated but dropped
	r, err := ParseStatus("<Idle|MPos:1.000,2.000,3.000,4.000>")
	assert.NoError(t, err)
	assert.Equal(t, &coord.Point{X: 1, Y: 2, Z: 3}, r.MPos)

	_, err = ParseStatus("<Idle|MPos:1,2,3,4,5,6,7>")
	assert.Error(t, err)
}

func TestParseStatus_UnknownFieldsIgnored(t *testing.T) {
	r, err := ParseStatus("<Idle|MPos:0,0,0|Pn:XYZ|Ln:99|SomeFutureField>")
	assert.NoError(t, err)
	assert.Equal(t, machine.StatusIdle, r.State)
	assert.Equal(t, &coord.Point{}, r.MPos)
}

func TestParseStatus_Reject(t *testing.T) {
	_, err := ParseStatus("<>")
	assert.Error(t, err)
	_, err = ParseStatus("<Idle|MPos:1,2")
	assert.Error(t, err)
	_, err = ParseStatus("<Idle|MPos:1,2>")
	assert.Error(t, err)
	_, err = ParseStatus("<Idle|MPos:a,b,c>")
	assert.Error(t, err)
	_, err = ParseStatus("<Idle|Bf:15>")
	assert.Error(t, err)
	_, err = ParseStatus("plain text")
	assert.Error(t, err)
}

func TestParseMachineState(t *testing.T) {
	assert.Equal(t, machine.StatusIdle, parseMachineState("Idle"))
	assert.Equal(t, machine.StatusHold, parseMachineState("Hold:1"))
	assert.Equal(t, machine.StatusDoor, parseMachineState("Door:3"))
	assert.Equal(t, machine.StatusRun, parseMachineState("run"))
	assert.Equal(t, machine.StatusHome, parseMachineState("Home"))
	assert.Equal(t, machine.StatusUnknown, parseMachineState("Warp"))
}
