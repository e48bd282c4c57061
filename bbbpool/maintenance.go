package bbbpool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// ReadMaintenance loads the slot numbers taken out of the pool by operators.
func ReadMaintenance(ctx context.Context, store structs.StateStore) (*structs.MaintenanceList, error) {
	list := &structs.MaintenanceList{}
	if _, err := store.ReadState(ctx, structs.StateKeyMaintenance, list); err != nil {
		return nil, fmt.Errorf("core/maintenance: unable to read the maintenance list: %v", err)
	}
	return list, nil
}

// UpdateMaintenance adds and removes slot numbers from the maintenance list
// and persists the result. Numbers outside of 1..poolSize are rejected.
func UpdateMaintenance(ctx context.Context, store structs.StateStore, add, remove []int,
	poolSize int) (*structs.MaintenanceList, error) {

	for _, n := range append(append([]int(nil), add...), remove...) {
		if n < 1 || n > poolSize {
			return nil, fmt.Errorf("core/maintenance: server number %d is outside of the pool (1-%d)",
				n, poolSize)
		}
	}

	list, err := ReadMaintenance(ctx, store)
	if err != nil {
		return nil, err
	}

	numbers := make(map[int]struct{}, len(list.Numbers)+len(add))
	for _, n := range list.Numbers {
		numbers[n] = struct{}{}
	}
	for _, n := range add {
		numbers[n] = struct{}{}
	}
	for _, n := range remove {
		delete(numbers, n)
	}

	list.Numbers = make([]int, 0, len(numbers))
	for n := range numbers {
		list.Numbers = append(list.Numbers, n)
	}
	sort.Ints(list.Numbers)
	list.LastUpdated = time.Now()

	if err := store.PersistState(ctx, structs.StateKeyMaintenance, list); err != nil {
		return nil, fmt.Errorf("core/maintenance: unable to persist the maintenance list: %v", err)
	}
	return list, nil
}
