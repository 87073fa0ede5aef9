package equipment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEquipment_SoloJob_FinishesAtDemandOverCapacity(t *testing.T) {
	// GIVEN an idle shared-queue CPU with 10 units/s capacity
	eq := New("n1/cpu", "n1", KindCPU, 10, 0, RegimeSharedQueue)

	// WHEN one job with 1 unit of demand is admitted at tick 0
	err := eq.Admit(0, "job-a", 1)
	assert.NoError(t, err)

	// THEN it completes after demand/capacity seconds = 100000 ticks
	next, ok := eq.NextCompletion(0)
	if !ok {
		t.Fatal("NextCompletion: got idle, want pending completion")
	}
	assert.Equal(t, int64(100000), next)

	done := eq.Finish(next)
	assert.Equal(t, []string{"job-a"}, done)
	assert.Equal(t, 0, eq.Occupants())
}

func TestEquipment_SharedQueue_TwoOccupants_HalveProgress(t *testing.T) {
	// GIVEN two identical jobs sharing the capacity from tick 0
	eq := New("n1/cpu", "n1", KindCPU, 10, 0, RegimeSharedQueue)
	_ = eq.Admit(0, "job-a", 1)
	_ = eq.Admit(0, "job-b", 1)

	// WHEN the next completion is derived
	next, ok := eq.NextCompletion(0)

	// THEN each progresses at capacity/2, so both need 200000 ticks
	if !ok {
		t.Fatal("NextCompletion: got idle, want pending completion")
	}
	assert.Equal(t, int64(200000), next)

	// AND both finish together at that tick, in admission order
	done := eq.Finish(next)
	assert.Equal(t, []string{"job-a", "job-b"}, done)
}

func TestEquipment_SharedQueue_LateArrival_SlowsFirstJob(t *testing.T) {
	// GIVEN a solo job halfway done when a second job arrives
	eq := New("n1/cpu", "n1", KindCPU, 10, 0, RegimeSharedQueue)
	_ = eq.Admit(0, "job-a", 1)
	_ = eq.Admit(50000, "job-b", 1)

	// WHEN the first job's completion is derived after the arrival
	next, ok := eq.NextCompletion(50000)

	// THEN job-a has 0.5 units left at half rate: 100000 more ticks
	if !ok {
		t.Fatal("NextCompletion: got idle, want pending completion")
	}
	assert.Equal(t, int64(150000), next)

	done := eq.Finish(next)
	assert.Equal(t, []string{"job-a"}, done)
	assert.Equal(t, 1, eq.Occupants())
}

func TestEquipment_FixedSlowdown_DelayScalesWithOccupants(t *testing.T) {
	// GIVEN a fixed-slowdown disk with 10 units/s capacity
	eq := New("n1/disk", "n1", KindDisk, 10, 0, RegimeFixedSlowdown)

	// WHEN a solo job and then a second concurrent job are admitted
	_ = eq.Admit(0, "job-a", 1)
	_ = eq.Admit(0, "job-b", 1)

	// THEN the solo job keeps its admission-time delay (1 occupant)
	// and the second pays for 2 occupants
	next, ok := eq.NextCompletion(0)
	if !ok {
		t.Fatal("NextCompletion: got idle, want pending completion")
	}
	assert.Equal(t, int64(100000), next)

	done := eq.Finish(100000)
	assert.Equal(t, []string{"job-a"}, done)

	next, ok = eq.NextCompletion(100000)
	if !ok {
		t.Fatal("NextCompletion: got idle, want job-b pending")
	}
	assert.Equal(t, int64(200000), next)
}

func TestEquipment_QueueLimit_RejectsWithErrOverloaded(t *testing.T) {
	// GIVEN an equipment with an occupant limit of 2
	eq := New("n1/cpu", "n1", KindCPU, 10, 2, RegimeSharedQueue)
	_ = eq.Admit(0, "job-a", 1)
	_ = eq.Admit(0, "job-b", 1)

	// WHEN a third job is admitted
	err := eq.Admit(0, "job-c", 1)

	// THEN it is rejected with ErrOverloaded and counted
	if !errors.Is(err, ErrOverloaded) {
		t.Fatalf("Admit past limit: got %v, want ErrOverloaded", err)
	}
	assert.Equal(t, 1, eq.Rejected)
	assert.Equal(t, 2, eq.Occupants())

	// AND capacity freed by a completion admits again
	eq.Finish(200000)
	assert.NoError(t, eq.Admit(200000, "job-d", 1))
}

func TestEquipment_Utilization_IsBusyFractionOfElapsedTime(t *testing.T) {
	// GIVEN a job occupying ticks [0, 100000) of a 400000-tick window
	eq := New("n1/cpu", "n1", KindCPU, 10, 0, RegimeSharedQueue)
	_ = eq.Admit(0, "job-a", 1)
	eq.Finish(100000)

	// WHEN utilization is read at tick 400000
	got := eq.Utilization(400000)

	// THEN the busy fraction is 0.25
	assert.InDelta(t, 0.25, got, 1e-9)
}

func TestEquipment_PeakOccupants_TracksHighWaterMark(t *testing.T) {
	eq := New("n1/cpu", "n1", KindCPU, 10, 0, RegimeSharedQueue)
	_ = eq.Admit(0, "a", 1)
	_ = eq.Admit(0, "b", 1)
	_ = eq.Admit(0, "c", 1)
	eq.Finish(eqNext(t, eq, 0))
	assert.Equal(t, 3, eq.PeakOccupants)
}

func eqNext(t *testing.T, eq *Equipment, now int64) int64 {
	t.Helper()
	next, ok := eq.NextCompletion(now)
	if !ok {
		t.Fatal("NextCompletion: equipment unexpectedly idle")
	}
	return next
}

func TestLink_TransitDelay_AddsSerializationToLatency(t *testing.T) {
	// GIVEN a 1 MB/s link with 500 ticks propagation latency
	link := &Link{ID: "l1", A: "n1", B: "n2", Bandwidth: 1e6, Latency: 500}

	// WHEN 1000 bytes transit
	got := link.TransitDelay(1000)

	// THEN delay is latency + bytes/bandwidth seconds = 500 + 1000 ticks
	assert.Equal(t, int64(1500), got)

	// AND a zero-byte payload pays only propagation
	assert.Equal(t, int64(500), link.TransitDelay(0))
}
