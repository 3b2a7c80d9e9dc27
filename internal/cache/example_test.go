package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/energia/backend/internal/cache"
)

// Example demonstrates loading through the cache
func Example() {
	listings := cache.New[[]string](24 * time.Hour)

	loads := 0
	load := func(context.Context) ([]string, error) {
		loads++
		return []string{"GUAVIO", "CHIVOR"}, nil
	}

	for i := 0; i < 3; i++ {
		codes, _ := listings.GetOrLoad(context.Background(), "ListadoRecursos", load)
		fmt.Println(codes)
	}
	fmt.Println("loads:", loads)
	// Output:
	// [GUAVIO CHIVOR]
	// [GUAVIO CHIVOR]
	// [GUAVIO CHIVOR]
	// loads: 1
}
