package field

import "sync"

// generatorSeed is the fixed domain tag the deterministic generator search
// starts from. No literal generator point is hand-fixed, so
// one is derived once, at first use, via try-and-increment: the smallest
// x >= generatorSeed for which x^3 + b is a quadratic residue in Fq, taking
// the even-y root. This is the same "nothing-up-my-sleeve" idiom used for
// NUMS generators on other curves, adapted to Grumpkin's b = -17.
const generatorSeed = uint64(1)

var (
	generatorOnce  sync.Once
	generatorPoint Point
)

// Generator returns the fixed Grumpkin base point G used throughout the
// stealth cryptosystem (spending_pub = spending_priv * G, etc.).
func Generator() Point {
	generatorOnce.Do(func() {
		x := BaseFromUint64(generatorSeed)
		for {
			rhs := x.Square().Mul(x).Add(grumpkinB)
			if y, ok := rhs.Sqrt(); ok {
				if y.IsOdd() {
					y = y.Neg()
				}
				generatorPoint = Point{X: x, Y: y}
				return
			}
			x = x.Add(BaseFromUint64(1))
		}
	})
	return generatorPoint
}
