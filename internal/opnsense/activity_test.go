package opnsense

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseActivity(t *testing.T) {
	headers := []string{
		"last pid: 81234;  load averages:  0.21,  0.18,  0.15  up 3+04:05:06    10:11:12",
		"52 processes:  1 running, 51 sleeping",
		"CPU:  7.5% user,  0.0% nice,  5.0% system,  0.0% interrupt, 87.5% idle",
		"Mem: 100M Active, 50M Inact, 50M Wired, 800M Free",
	}

	a := ParseActivity(headers)
	assert.Equal(t, "12.5", a.CPU)
	assert.Equal(t, "20", a.Memory)
	assert.Equal(t, int64(3*86400+4*3600+5*60+6), a.UptimeSeconds)
}

func TestParseActivity_UptimeWithoutDays(t *testing.T) {
	a := ParseActivity([]string{"last pid: 1;  load averages:  0.00,  0.00,  0.00  up 01:00:00    00:00:00"})
	assert.Equal(t, int64(3600), a.UptimeSeconds)
}

func TestParseActivity_MixedUnits(t *testing.T) {
	a := ParseActivity([]string{"Mem: 1G Active, 512M Inact, 0K Wired, 2560M Free"})
	// (1024+512)/(1024+512+2560) = 37.5%
	assert.Equal(t, "38", a.Memory)
}

func TestParseActivity_Unparseable(t *testing.T) {
	a := ParseActivity([]string{
		"CPU: garbage",
		"Mem: 100M Active, 50M Inact",
	})
	assert.Equal(t, NotAvailable, a.CPU)
	assert.Equal(t, NotAvailable, a.Memory)
	assert.Zero(t, a.UptimeSeconds)

	empty := ParseActivity(nil)
	assert.Equal(t, NotAvailable, empty.CPU)
	assert.Equal(t, NotAvailable, empty.Memory)
}
