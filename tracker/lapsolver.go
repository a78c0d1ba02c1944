package tracker

import (
	"math"
)

// marker values used in the solver marker table
const (
	markerNone uint8 = iota
	markerStar
	markerPrime
)

// LAPSolver solves the rectangular linear assignment problem using the
// Hungarian (Kuhn-Munkres) algorithm. A solver keeps its working buffers
// between calls so repeated solves of similarly sized problems do not
// allocate
type LAPSolver struct {
	// m is the number of tasks (rows) in the working cost matrix
	m int
	// n is the number of workers (columns) in the working cost matrix
	n int
	// workingCost is the reduced cost matrix in row major order
	workingCost []float32
	// markers holds star and prime markers in row major order
	markers []uint8
	// coveredRow and coveredCol flag covered rows and columns
	coveredRow []bool
	coveredCol []bool
	// hasStarredZeroInRow and hasStarredZeroInCol flag rows and columns
	// holding a starred zero
	hasStarredZeroInRow []bool
	hasStarredZeroInCol []bool
	// hasNewlyStarredZeroInRow and hasNewlyStarredZeroInCol flag zeros
	// starred while augmenting the current path
	hasNewlyStarredZeroInRow []bool
	hasNewlyStarredZeroInCol []bool
	// paths is the alternating primed and starred zero path being augmented
	paths [][2]int
}

// NewLAPSolver initializes and returns a new LAPSolver
func NewLAPSolver() *LAPSolver {
	return &LAPSolver{}
}

// Solve finds the assignment of tasks (rows) to workers (columns) that
// minimizes, or maximizes when maximize is set, the total cost of the
// matched pairs. It returns the assignment as task index to worker index,
// the reverse assignment as worker index to task index, with -1 marking an
// unmatched entry, and the total cost of the matched pairs taken from the
// given cost matrix. An empty matrix yields empty assignments and zero cost.
// Solve panics if the cost matrix rows have unequal lengths
func (s *LAPSolver) Solve(cost [][]float32, maximize bool) (assignment,
	assignmentReversed []int, totalCost float32) {

	m := len(cost)
	n := 0

	if m > 0 {
		n = len(cost[0])
	}

	for _, row := range cost {
		if len(row) != n {
			panic("tracker: cost matrix rows have unequal lengths")
		}
	}

	assignment = newAssignment(m)
	assignmentReversed = newAssignment(n)

	// no assignment can be made when either set is empty
	if m == 0 || n == 0 {
		return assignment, assignmentReversed, 0
	}

	// the algorithm requires at least as many workers as tasks, work on
	// the transposed matrix when that does not hold
	isTransposed := m > n

	if isTransposed {
		s.m, s.n = n, m
	} else {
		s.m, s.n = m, n
	}

	// copy the cost matrix into the working buffer, minimizing on the
	// negated costs when the goal is to maximize
	s.workingCost = growFloats(s.workingCost, s.m*s.n)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			v := cost[i][j]

			if maximize {
				v = -v
			}

			if isTransposed {
				s.workingCost[j*s.n+i] = v
			} else {
				s.workingCost[i*s.n+j] = v
			}
		}
	}

	s.markers = growMarkers(s.markers, s.m*s.n)
	s.coveredRow = growBools(s.coveredRow, s.m)
	s.coveredCol = growBools(s.coveredCol, s.n)
	s.hasStarredZeroInRow = growBools(s.hasStarredZeroInRow, s.m)
	s.hasStarredZeroInCol = growBools(s.hasStarredZeroInCol, s.n)
	s.hasNewlyStarredZeroInRow = growBools(s.hasNewlyStarredZeroInRow, s.m)
	s.hasNewlyStarredZeroInCol = growBools(s.hasNewlyStarredZeroInCol, s.n)
	s.paths = s.paths[:0]

	s.reduceRows()
	s.findInitialStarredZeros()

	// a unique assignment for every task exists once every column holds a
	// starred zero
	for s.coverColsWithStarredZeros() != s.m {
		i, j := s.primeUncoveredZeros()
		s.findMaximalMatching(i, j)
	}

	// read the starred zeros back as the assignment, totalling the matched
	// costs against the caller's original matrix
	if isTransposed {
		totalCost = s.assign(cost, assignmentReversed, true)

		for j := 0; j < s.m; j++ {
			assignment[assignmentReversed[j]] = j
		}
	} else {
		totalCost = s.assign(cost, assignment, false)

		for i := 0; i < s.m; i++ {
			assignmentReversed[assignment[i]] = i
		}
	}

	return assignment, assignmentReversed, totalCost
}

// reduceRows subtracts the row minimum from every row of the working cost
// matrix so each row holds at least one zero
func (s *LAPSolver) reduceRows() {

	for i := 0; i < s.m; i++ {
		row := s.workingCost[i*s.n : (i+1)*s.n]
		minVal := row[0]

		for _, v := range row[1:] {
			if v < minVal {
				minVal = v
			}
		}

		for j := range row {
			row[j] -= minVal
		}
	}
}

// findInitialStarredZeros stars the first zero of every row whose column
// does not already hold a starred zero
func (s *LAPSolver) findInitialStarredZeros() {

	for i := 0; i < s.m; i++ {
		for j := 0; j < s.n; j++ {
			if !s.hasStarredZeroInCol[j] && s.workingCost[i*s.n+j] == 0 {
				s.markers[i*s.n+j] = markerStar
				s.hasStarredZeroInRow[i] = true
				s.hasStarredZeroInCol[j] = true
				break
			}
		}
	}
}

// coverColsWithStarredZeros covers every column holding a starred zero and
// returns the number of covered columns
func (s *LAPSolver) coverColsWithStarredZeros() int {

	numColsCovered := 0

	for j := 0; j < s.n; j++ {
		if s.hasStarredZeroInCol[j] {
			s.coveredCol[j] = true
			numColsCovered++
		}
	}

	return numColsCovered
}

// primeUncoveredZeros primes uncovered zeros until one is found in a row
// without a starred zero, returning that zero as the start of an augmenting
// path. When no uncovered zero remains the costs are adjusted to create one
func (s *LAPSolver) primeUncoveredZeros() (int, int) {

	i := 0
	j := 0

	findUncoveredZero := func() bool {
		for k := i; k < s.m; k++ {
			if s.coveredRow[k] {
				continue
			}

			for l := j; l < s.n; l++ {
				if !s.coveredCol[l] && s.workingCost[k*s.n+l] == 0 {
					i = k
					j = l
					return true
				}
			}
		}

		return false
	}

	for {
		if !findUncoveredZero() {
			// every zero is covered, adjust the costs to uncover new
			// zeros and rescan from the start
			s.adjustCost()
			i = 0
			j = 0
			continue
		}

		// prime the found zero
		s.markers[i*s.n+j] = markerPrime

		if !s.hasStarredZeroInRow[i] {
			return i, j
		}

		// the row already holds a starred zero, cover this row, uncover
		// the starred zero's column and keep searching
		j = s.locateStarredZeroInRow(i)
		s.coveredRow[i] = true
		s.coveredCol[j] = false
	}
}

// findMaximalMatching walks the alternating path of primed and starred
// zeros starting at the given primed zero, stars the primed zeros and
// unstars the starred ones, then clears primes and covers for the next pass
func (s *LAPSolver) findMaximalMatching(pathI, pathJ int) {

	s.paths = append(s.paths, [2]int{pathI, pathJ})

	for {
		j := s.paths[len(s.paths)-1][1]

		if !s.hasStarredZeroInCol[j] {
			break
		}

		i := s.locateStarredZeroInCol(j)
		s.paths = append(s.paths, [2]int{i, j})

		j = s.locatePrimedZeroInRow(i)
		s.paths = append(s.paths, [2]int{i, j})
	}

	// augment the path
	for k, path := range s.paths {
		i, j := path[0], path[1]

		if k%2 == 0 {
			// star the primed zero
			s.markers[i*s.n+j] = markerStar
			s.hasStarredZeroInRow[i] = true
			s.hasStarredZeroInCol[j] = true
			s.hasNewlyStarredZeroInRow[i] = true
			s.hasNewlyStarredZeroInCol[j] = true
		} else {
			// unstar the starred zero
			s.markers[i*s.n+j] = markerNone

			if !s.hasNewlyStarredZeroInRow[i] {
				s.hasStarredZeroInRow[i] = false
			}

			if !s.hasNewlyStarredZeroInCol[j] {
				s.hasStarredZeroInCol[j] = false
			}
		}
	}

	s.paths = s.paths[:0]

	for i := range s.hasNewlyStarredZeroInRow {
		s.hasNewlyStarredZeroInRow[i] = false
	}

	for j := range s.hasNewlyStarredZeroInCol {
		s.hasNewlyStarredZeroInCol[j] = false
	}

	// erase remaining primes
	for k := range s.markers {
		if s.markers[k] == markerPrime {
			s.markers[k] = markerNone
		}
	}

	// clear covered flags
	for i := range s.coveredRow {
		s.coveredRow[i] = false
	}

	for j := range s.coveredCol {
		s.coveredCol[j] = false
	}
}

// adjustCost subtracts the minimum uncovered cost from every uncovered
// column and adds it to every covered row, creating at least one new
// uncovered zero
func (s *LAPSolver) adjustCost() {

	minUncoveredCost := float32(math.MaxFloat32)

	for i := 0; i < s.m; i++ {
		if s.coveredRow[i] {
			continue
		}

		for j := 0; j < s.n; j++ {
			if !s.coveredCol[j] && s.workingCost[i*s.n+j] < minUncoveredCost {
				minUncoveredCost = s.workingCost[i*s.n+j]
			}
		}
	}

	for i := 0; i < s.m; i++ {
		for j := 0; j < s.n; j++ {
			if s.coveredRow[i] {
				s.workingCost[i*s.n+j] += minUncoveredCost
			}

			if !s.coveredCol[j] {
				s.workingCost[i*s.n+j] -= minUncoveredCost
			}
		}
	}
}

// assign reads the starred zeros back into the given assignment slice and
// returns the total cost of the matched pairs. The cost is taken from the
// caller's matrix, transposed indexing is used when the working matrix was
// transposed
func (s *LAPSolver) assign(cost [][]float32, assignment []int,
	transposed bool) float32 {

	var total float32

	for i := 0; i < s.m; i++ {
		for j := 0; j < s.n; j++ {
			if s.markers[i*s.n+j] != markerStar {
				continue
			}

			assignment[i] = j

			if transposed {
				total += cost[j][i]
			} else {
				total += cost[i][j]
			}
		}
	}

	return total
}

// locateStarredZeroInRow returns the column of the starred zero in the
// given row, or -1 when the row holds none
func (s *LAPSolver) locateStarredZeroInRow(i int) int {

	for j := 0; j < s.n; j++ {
		if s.markers[i*s.n+j] == markerStar {
			return j
		}
	}

	return -1
}

// locateStarredZeroInCol returns the row of the starred zero in the given
// column, or -1 when the column holds none
func (s *LAPSolver) locateStarredZeroInCol(j int) int {

	for i := 0; i < s.m; i++ {
		if s.markers[i*s.n+j] == markerStar {
			return i
		}
	}

	return -1
}

// locatePrimedZeroInRow returns the column of the primed zero in the given
// row, or -1 when the row holds none
func (s *LAPSolver) locatePrimedZeroInRow(i int) int {

	for j := 0; j < s.n; j++ {
		if s.markers[i*s.n+j] == markerPrime {
			return j
		}
	}

	return -1
}

// newAssignment creates an assignment slice of length n filled with -1
func newAssignment(n int) []int {

	assignment := make([]int, n)

	for i := range assignment {
		assignment[i] = -1
	}

	return assignment
}

// growFloats returns a zeroed float32 slice of length n, reusing the given
// buffer when it has the capacity
func growFloats(buf []float32, n int) []float32 {

	if cap(buf) < n {
		return make([]float32, n)
	}

	buf = buf[:n]

	for i := range buf {
		buf[i] = 0
	}

	return buf
}

// growMarkers returns a zeroed marker slice of length n, reusing the given
// buffer when it has the capacity
func growMarkers(buf []uint8, n int) []uint8 {

	if cap(buf) < n {
		return make([]uint8, n)
	}

	buf = buf[:n]

	for i := range buf {
		buf[i] = markerNone
	}

	return buf
}

// growBools returns a cleared bool slice of length n, reusing the given
// buffer when it has the capacity
func growBools(buf []bool, n int) []bool {

	if cap(buf) < n {
		return make([]bool, n)
	}

	buf = buf[:n]

	for i := range buf {
		buf[i] = false
	}

	return buf
}
