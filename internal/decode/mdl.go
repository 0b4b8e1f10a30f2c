// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parsed form of MDL RXN and molfile (V2000) blocks.

type mdlAtom struct {
	symbol  string
	charge  int
	radical int // unpaired electrons
	isotope int
	mapNum  int
}

type mdlBond struct {
	a, b  int
	order int // 1, 2, 3 or bondAromatic
}

const bondAromatic = 4

type molecule struct {
	atoms []mdlAtom
	bonds []mdlBond
}

type rxnReaction struct {
	reactants []molecule
	products  []molecule
	agents    []molecule
}

var errV3000 = errors.New("V3000 blocks are not supported")

// parseRXN reads an RXN V2000 block starting with its $RXN line.
func parseRXN(block string) (rxnReaction, error) {
	lines := splitLines(block)
	if len(lines) < 5 || !strings.HasPrefix(lines[0], "$RXN") {
		return rxnReaction{}, errors.New("missing RXN header")
	}
	if strings.Contains(lines[0], "V3000") {
		return rxnReaction{}, errV3000
	}

	counts := lines[4]
	nr, err := fixedCount(counts, 0, 3)
	if err != nil {
		return rxnReaction{}, fmt.Errorf("reactant count: %w", err)
	}
	np, err := fixedCount(counts, 3, 6)
	if err != nil {
		return rxnReaction{}, fmt.Errorf("product count: %w", err)
	}
	na, err := fixedCount(counts, 6, 9)
	if err != nil {
		return rxnReaction{}, fmt.Errorf("agent count: %w", err)
	}

	var mols []molecule
	for i := 5; i < len(lines) && len(mols) < nr+np+na; i++ {
		if !strings.HasPrefix(lines[i], "$MOL") {
			continue
		}
		m, used, err := parseMolfile(lines[i+1:])
		if err != nil {
			return rxnReaction{}, fmt.Errorf("molecule %d: %w", len(mols)+1, err)
		}
		mols = append(mols, m)
		i += used
	}
	if len(mols) != nr+np+na {
		return rxnReaction{}, fmt.Errorf("expected %d molecules, found %d", nr+np+na, len(mols))
	}

	return rxnReaction{
		reactants: mols[:nr],
		products:  mols[nr : nr+np],
		agents:    mols[nr+np:],
	}, nil
}

// parseMolfile reads one V2000 molfile and returns the number of lines it
// consumed.
func parseMolfile(lines []string) (molecule, int, error) {
	if len(lines) < 4 {
		return molecule{}, 0, errors.New("truncated header")
	}
	counts := lines[3]
	if strings.Contains(counts, "V3000") {
		return molecule{}, 0, errV3000
	}
	natoms, err := fixedCount(counts, 0, 3)
	if err != nil {
		return molecule{}, 0, fmt.Errorf("atom count: %w", err)
	}
	nbonds, err := fixedCount(counts, 3, 6)
	if err != nil {
		return molecule{}, 0, fmt.Errorf("bond count: %w", err)
	}
	if len(lines) < 4+natoms+nbonds {
		return molecule{}, 0, errors.New("truncated atom or bond block")
	}

	m := molecule{atoms: make([]mdlAtom, natoms), bonds: make([]mdlBond, 0, nbonds)}
	for i := range natoms {
		a, err := parseAtomLine(lines[4+i])
		if err != nil {
			return molecule{}, 0, fmt.Errorf("atom %d: %w", i+1, err)
		}
		m.atoms[i] = a
	}
	for i := range nbonds {
		line := lines[4+natoms+i]
		a, err1 := fixedInt(line, 0, 3)
		b, err2 := fixedInt(line, 3, 6)
		order, err3 := fixedInt(line, 6, 9)
		if err := errors.Join(err1, err2, err3); err != nil {
			return molecule{}, 0, fmt.Errorf("bond %d: %w", i+1, err)
		}
		if a < 1 || a > natoms || b < 1 || b > natoms || a == b {
			return molecule{}, 0, fmt.Errorf("bond %d: atom index out of range", i+1)
		}
		if order < 1 || order > bondAromatic {
			return molecule{}, 0, fmt.Errorf("bond %d: unsupported bond type %d", i+1, order)
		}
		m.bonds = append(m.bonds, mdlBond{a: a - 1, b: b - 1, order: order})
	}

	used := 4 + natoms + nbonds
	var sawCHG bool
	for ; used < len(lines); used++ {
		line := lines[used]
		if strings.HasPrefix(line, "M  END") {
			used++
			break
		}
		if strings.HasPrefix(line, "$") {
			break
		}
		switch {
		case strings.HasPrefix(line, "M  CHG"):
			if !sawCHG {
				// The property block supersedes atom block charges and radicals.
				for i := range m.atoms {
					m.atoms[i].charge = 0
					m.atoms[i].radical = 0
				}
				sawCHG = true
			}
			err = applyProperty(&m, line, func(a *mdlAtom, v int) { a.charge = v })
		case strings.HasPrefix(line, "M  RAD"):
			err = applyProperty(&m, line, func(a *mdlAtom, v int) {
				// 2 is a doublet; singlets and triplets carry two unpaired electrons.
				if v == 2 {
					a.radical = 1
				} else if v > 0 {
					a.radical = 2
				}
			})
		case strings.HasPrefix(line, "M  ISO"):
			err = applyProperty(&m, line, func(a *mdlAtom, v int) { a.isotope = v })
		}
		if err != nil {
			return molecule{}, 0, err
		}
	}
	return m, used, nil
}

func parseAtomLine(line string) (mdlAtom, error) {
	symbol := strings.TrimSpace(fixed(line, 31, 34))
	if symbol == "" {
		return mdlAtom{}, errors.New("missing element symbol")
	}
	code, err := fixedInt(line, 36, 39)
	if err != nil {
		return mdlAtom{}, fmt.Errorf("charge: %w", err)
	}
	mapNum, err := fixedInt(line, 60, 63)
	if err != nil {
		return mdlAtom{}, fmt.Errorf("atom map: %w", err)
	}

	a := mdlAtom{symbol: symbol, mapNum: mapNum}
	switch code {
	case 0:
	case 1, 2, 3:
		a.charge = 4 - code
	case 4:
		a.radical = 1
	case 5, 6, 7:
		a.charge = 4 - code
	default:
		return mdlAtom{}, fmt.Errorf("charge code %d", code)
	}
	return a, nil
}

// applyProperty reads an "M  XXXnn8 aaa vvv ..." line.
func applyProperty(m *molecule, line string, set func(*mdlAtom, int)) error {
	fields := strings.Fields(line[6:])
	if len(fields) == 0 {
		return fmt.Errorf("malformed property line %q", line)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || len(fields) < 1+2*n {
		return fmt.Errorf("malformed property line %q", line)
	}
	for i := range n {
		idx, err1 := strconv.Atoi(fields[1+2*i])
		val, err2 := strconv.Atoi(fields[2+2*i])
		if err1 != nil || err2 != nil || idx < 1 || idx > len(m.atoms) {
			return fmt.Errorf("malformed property line %q", line)
		}
		set(&m.atoms[idx-1], val)
	}
	return nil
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

// fixed returns the [start, end) column slice of line, clipped to its length.
func fixed(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

// fixedInt parses a fixed-width integer column; blank columns read as zero.
func fixedInt(line string, start, end int) (int, error) {
	s := strings.TrimSpace(fixed(line, start, end))
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// fixedCount is fixedInt for count fields, which cannot be negative.
func fixedCount(line string, start, end int) (int, error) {
	n, err := fixedInt(line, start, end)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
