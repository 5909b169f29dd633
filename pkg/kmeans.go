package fimgs

import (
	"fmt"
	"math"
	"math/rand"
)

type rgb = [3]float64

func manhattan(a, b rgb) float64 {
	return math.Abs(a[0]-b[0]) + math.Abs(a[1]-b[1]) + math.Abs(a[2]-b[2])
}

// makeColorArray reads every colour of im into one flat slice.
func makeColorArray(im *Image) []rgb {
	res := make([]rgb, 0, im.Width*im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			i := im.PixOffset(x, y)
			res = append(res, rgb{float64(im.Pix[i]), float64(im.Pix[i+1]), float64(im.Pix[i+2])})
		}
	}
	return res
}

// initClusterCenters is k-means++ seeding: every next centre is drawn with
// probability proportional to its distance to the nearest chosen one.
func initClusterCenters(rng *rand.Rand, colors []rgb, k int) []rgb {
	centers := make([]rgb, k)
	centers[0] = colors[rng.Intn(len(colors))]
	nearest := make([]float64, len(colors))
	sum := 0.0
	for i, c := range colors {
		nearest[i] = manhattan(c, centers[0])
		sum += nearest[i]
	}
	for j := 1; j < k; j++ {
		centers[j] = colors[rng.Intn(len(colors))]
		x := rng.Float64() * sum
		for i, c := range colors {
			x -= nearest[i]
			if x < 0 {
				centers[j] = c
				break
			}
		}
		for i, c := range colors {
			if d := manhattan(c, centers[j]); d < nearest[i] {
				sum += d - nearest[i]
				nearest[i] = d
			}
		}
	}
	return centers
}

func nearestCenter(c rgb, centers []rgb) int {
	best, bestDist := 0, manhattan(c, centers[0])
	for j := 1; j < len(centers); j++ {
		if d := manhattan(c, centers[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// kmeansIters runs Lloyd iterations until centres move less than minMovement in total.
func kmeansIters(colors, centers []rgb, maxEpochs int, minMovement float64) {
	sums := make([]rgb, len(centers))
	counts := make([]int, len(centers))
	for epoch := 0; epoch < maxEpochs; epoch++ {
		clear(sums)
		clear(counts)
		for _, c := range colors {
			j := nearestCenter(c, centers)
			counts[j]++
			for ch := range c {
				sums[j][ch] += c[ch]
			}
		}
		movement := 0.0
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			n := float64(counts[j])
			mean := rgb{sums[j][0] / n, sums[j][1] / n, sums[j][2] / n}
			movement += manhattan(centers[j], mean)
			centers[j] = mean
		}
		if movement < minMovement {
			return
		}
	}
}

// maxTrainingColors bounds how many pixels the centres are fitted on.
const maxTrainingColors = 1 << 14

type clusterFilter struct {
	clusters int
	seed     int64
}

// NewCluster quantizes colours to the given number of k-means centres;
// clusters < 2 means 7.
func NewCluster(clusters int, seed int64) Filter {
	if clusters < 2 {
		clusters = 7
	}
	return clusterFilter{clusters: clusters, seed: seed}
}

func (clusterFilter) Name() string { return "cluster" }

func (f clusterFilter) Describe() string {
	return fmt.Sprintf("k-means colour quantization into %d colours", f.clusters)
}

func (f clusterFilter) Apply(im *Image) error {
	if err := im.Validate(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(f.seed))
	colors := makeColorArray(im)
	training := colors
	if step := len(colors) / maxTrainingColors; step > 1 {
		training = make([]rgb, 0, len(colors)/step+1)
		for i := 0; i < len(colors); i += step {
			training = append(training, colors[i])
		}
	}

	centers := initClusterCenters(rng, training, f.clusters)
	kmeansIters(training, centers, 100, 1)

	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			c := centers[nearestCenter(colors[y*im.Width+x], centers)]
			i := im.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				im.Pix[i+ch] = clampByte(int(math.Round(c[ch])))
			}
		}
	}
	return nil
}
