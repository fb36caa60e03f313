package anneal

import "math"

// minTemperature floors the temperature in the Metropolis exponent so that
// schedules ending near zero never divide by zero.
const minTemperature = 1e-8

// LinearSchedule returns the per-step temperatures ramping from tInit to
// tFinal. A single-step schedule holds only tFinal.
func LinearSchedule(steps int, tInit, tFinal float64) []float64 {
	if steps <= 0 {
		return nil
	}
	if steps == 1 {
		return []float64{tFinal}
	}

	schedule := make([]float64, steps)
	for i := range schedule {
		schedule[i] = tInit + (tFinal-tInit)*float64(i)/float64(steps-1)
	}
	// Pin the endpoint so rounding cannot leave it a hair off tFinal.
	schedule[steps-1] = tFinal
	return schedule
}

// Accept applies the Metropolis criterion. u is a uniform draw in [0,1).
func Accept(dE, temperature, u float64) bool {
	if dE <= 0 {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return u < math.Exp(-dE/math.Max(temperature, minTemperature))
}
