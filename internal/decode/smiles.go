// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"strconv"
	"strings"
)

// SMILES writing for molecules read from MDL blocks. Output follows the
// input atom order and is not canonical.

var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

var aromaticSymbols = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"Se": true, "As": true,
}

var defaultValences = map[string][]int{
	"B": {3}, "C": {4}, "N": {3, 5}, "O": {2}, "P": {3, 5}, "S": {2, 4, 6},
	"F": {1}, "Cl": {1}, "Br": {1}, "I": {1},
}

// reactionSMILES writes reactants>agents>products. It returns "" when no
// role holds any atoms.
func reactionSMILES(r rxnReaction) string {
	reactants := joinMolecules(r.reactants)
	agents := joinMolecules(r.agents)
	products := joinMolecules(r.products)
	if reactants == "" && agents == "" && products == "" {
		return ""
	}
	return reactants + ">" + agents + ">" + products
}

func joinMolecules(mols []molecule) string {
	var parts []string
	for _, m := range mols {
		if s := moleculeSMILES(m); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

type smilesWriter struct {
	m        molecule
	adj      [][]int // bond indices per atom
	aromatic []bool
	visited  []bool
	tree     []bool // bond is a DFS tree edge
	closure  []bool // bond closes a ring
	ringNum  map[int]int
	used     map[int]bool
	sb       strings.Builder
}

// moleculeSMILES writes every connected component of m, separated by dots.
func moleculeSMILES(m molecule) string {
	if len(m.atoms) == 0 {
		return ""
	}
	w := &smilesWriter{
		m:        m,
		adj:      make([][]int, len(m.atoms)),
		aromatic: make([]bool, len(m.atoms)),
		visited:  make([]bool, len(m.atoms)),
		tree:     make([]bool, len(m.bonds)),
		closure:  make([]bool, len(m.bonds)),
		ringNum:  map[int]int{},
		used:     map[int]bool{},
	}
	for i, b := range m.bonds {
		w.adj[b.a] = append(w.adj[b.a], i)
		w.adj[b.b] = append(w.adj[b.b], i)
		if b.order == bondAromatic {
			w.aromatic[b.a] = true
			w.aromatic[b.b] = true
		}
	}

	var starts []int
	for i := range m.atoms {
		if !w.visited[i] {
			starts = append(starts, i)
			w.classify(i, -1)
		}
	}
	w.visited = make([]bool, len(m.atoms))
	for n, start := range starts {
		if n > 0 {
			w.sb.WriteByte('.')
		}
		w.emit(start, -1)
	}
	return w.sb.String()
}

func (w *smilesWriter) other(bond, atom int) int {
	b := w.m.bonds[bond]
	if b.a == atom {
		return b.b
	}
	return b.a
}

// classify marks tree edges and ring closures with a depth-first walk.
func (w *smilesWriter) classify(atom, parentBond int) {
	w.visited[atom] = true
	for _, bi := range w.adj[atom] {
		if bi == parentBond || w.tree[bi] || w.closure[bi] {
			continue
		}
		next := w.other(bi, atom)
		if w.visited[next] {
			w.closure[bi] = true
			continue
		}
		w.tree[bi] = true
		w.classify(next, bi)
	}
}

// emit writes atom, its ring closure digits, then its branches. The walk
// order matches classify so ring openings precede their closings.
func (w *smilesWriter) emit(atom, parentBond int) {
	w.visited[atom] = true
	if parentBond >= 0 {
		w.sb.WriteString(w.bondSymbol(parentBond))
	}
	w.writeAtom(atom)

	var children []int
	for _, bi := range w.adj[atom] {
		switch {
		case w.closure[bi]:
			if n, open := w.ringNum[bi]; open {
				w.sb.WriteString(ringLabel(n))
				delete(w.ringNum, bi)
				delete(w.used, n)
				continue
			}
			n := w.nextRing()
			w.ringNum[bi] = n
			w.used[n] = true
			w.sb.WriteString(w.bondSymbol(bi))
			w.sb.WriteString(ringLabel(n))
		case w.tree[bi] && bi != parentBond && !w.visited[w.other(bi, atom)]:
			children = append(children, bi)
		}
	}

	for i, bi := range children {
		last := i == len(children)-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.emit(w.other(bi, atom), bi)
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

func (w *smilesWriter) nextRing() int {
	for n := 1; ; n++ {
		if !w.used[n] {
			return n
		}
	}
}

func ringLabel(n int) string {
	if n < 10 {
		return strconv.Itoa(n)
	}
	return "%" + strconv.Itoa(n)
}

func (w *smilesWriter) bondSymbol(bi int) string {
	b := w.m.bonds[bi]
	switch b.order {
	case 2:
		return "="
	case 3:
		return "#"
	case bondAromatic:
		return ""
	}
	if w.aromatic[b.a] && w.aromatic[b.b] {
		return "-"
	}
	return ""
}

func (w *smilesWriter) writeAtom(i int) {
	a := w.m.atoms[i]
	sym := a.symbol
	if w.aromatic[i] && aromaticSymbols[sym] {
		sym = strings.ToLower(sym)
	}
	hs := w.hydrogens(i)

	if organicSubset[a.symbol] && a.charge == 0 && a.isotope == 0 && a.mapNum == 0 && a.radical == 0 {
		w.sb.WriteString(sym)
		return
	}

	w.sb.WriteByte('[')
	if a.isotope > 0 {
		w.sb.WriteString(strconv.Itoa(a.isotope))
	}
	w.sb.WriteString(sym)
	if hs > 0 {
		w.sb.WriteByte('H')
		if hs > 1 {
			w.sb.WriteString(strconv.Itoa(hs))
		}
	}
	if a.charge != 0 {
		sign := byte('+')
		if a.charge < 0 {
			sign = '-'
		}
		w.sb.WriteByte(sign)
		if abs(a.charge) > 1 {
			w.sb.WriteString(strconv.Itoa(abs(a.charge)))
		}
	}
	if a.mapNum > 0 {
		w.sb.WriteByte(':')
		w.sb.WriteString(strconv.Itoa(a.mapNum))
	}
	w.sb.WriteByte(']')
}

// hydrogens returns the implicit hydrogen count of atom i from its bond
// order sum and the smallest default valence that accommodates it.
func (w *smilesWriter) hydrogens(i int) int {
	a := w.m.atoms[i]
	base, ok := defaultValences[a.symbol]
	if !ok {
		return 0
	}

	sum, aromaticBonds := 0, 0
	for _, bi := range w.adj[i] {
		switch o := w.m.bonds[bi].order; o {
		case bondAromatic:
			aromaticBonds++
		default:
			sum += o
		}
	}
	if aromaticBonds > 0 {
		sum += aromaticBonds + 1
	}

	for _, v := range base {
		v = chargedValence(a.symbol, v, a.charge)
		if v >= sum {
			return max(v-sum-a.radical, 0)
		}
	}
	return 0
}

// chargedValence shifts a neutral valence by a formal charge.
func chargedValence(symbol string, v, charge int) int {
	switch symbol {
	case "B":
		return v - charge
	case "C":
		return v - abs(charge)
	default:
		return v + charge
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
