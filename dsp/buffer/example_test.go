package buffer_test

import (
	"fmt"

	"github.com/cwbudde/algo-tuner/dsp/buffer"
)

func ExampleRing() {
	r := buffer.NewRing(4)
	r.Push([]float64{1, 2, 3})
	r.Push([]float64{4, 5})

	window := make([]float64, 4)
	if err := r.Snapshot(window); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(window)
	// Output: [2 3 4 5]
}
