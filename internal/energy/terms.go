// Package energy holds the scoring terms summed into the design objective.
// Every term applies its own weight and contributes 0 when the outputs it
// reads are absent.
package energy

import (
	"github.com/cwbudde/seqdesign/internal/design"
	"github.com/cwbudde/seqdesign/internal/oracle"
)

// DefaultPAEScale maps a PAE of ~31 Å onto 1.
const DefaultPAEScale = 1 / 31.0

// PLDDTEnergy rewards confident chains: -(pLDDT * scale * weight) per chain.
// Use scale 0.01 when pLDDT is reported on a 0-100 scale.
type PLDDTEnergy struct {
	Weight float64
	Scale  float64
}

// NewPLDDTEnergy creates a pLDDT term.
func NewPLDDTEnergy(weight, scale float64) PLDDTEnergy {
	return PLDDTEnergy{Weight: weight, Scale: scale}
}

// Evaluate implements design.EnergyTerm.
func (e PLDDTEnergy) Evaluate(outputs design.Outputs, state design.State) float64 {
	plddt, ok := outputs.ChainFloats(oracle.KeyPLDDT)
	if !ok || len(plddt) == 0 {
		return 0
	}
	var total float64
	for _, name := range sortedKeys(plddt) {
		total += -(plddt[name] * e.Scale) * e.Weight
	}
	return total
}

// PTMEnergy rewards a high pTM: -(pTM * weight).
type PTMEnergy struct {
	Weight float64
}

// NewPTMEnergy creates a pTM term.
func NewPTMEnergy(weight float64) PTMEnergy {
	return PTMEnergy{Weight: weight}
}

// Evaluate implements design.EnergyTerm.
func (e PTMEnergy) Evaluate(outputs design.Outputs, state design.State) float64 {
	ptm, ok := outputs.Float(oracle.KeyPTM)
	if !ok {
		return 0
	}
	return -(ptm * e.Weight)
}

// PAEEnergy penalises uncertainty: mean(PAE) * scale * weight.
type PAEEnergy struct {
	Weight float64
	Scale  float64
}

// NewPAEEnergy creates a PAE term.
func NewPAEEnergy(weight, scale float64) PAEEnergy {
	return PAEEnergy{Weight: weight, Scale: scale}
}

// Evaluate implements design.EnergyTerm.
func (e PAEEnergy) Evaluate(outputs design.Outputs, state design.State) float64 {
	pae, ok := outputs.Matrix(oracle.KeyPAE)
	if !ok {
		return 0
	}

	var sum float64
	var n int
	for _, row := range pae {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return (sum / float64(n)) * e.Scale * e.Weight
}
