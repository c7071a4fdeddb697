// Copyright (c) 2025, The NPU Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import (
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
)

// TimingLog accumulates per-burst timing and counter rows in an etable
// for analysis and export.
type TimingLog struct {
	Log *etable.Table `view:"no-inline" desc:"burst-level timing log data"`
}

// NewTimingLog returns a configured, empty timing log.
func NewTimingLog() *TimingLog {
	tl := &TimingLog{Log: &etable.Table{}}
	tl.Config(tl.Log)
	return tl
}

// Config sets the log table schema.
func (tl *TimingLog) Config(dt *etable.Table) {
	dt.SetMetaData("name", "BurstTimingLog")
	dt.SetMetaData("read-only", "true")
	sch := etable.Schema{
		{Name: "Burst", Type: etensor.INT64},
		{Name: "PropagationUS", Type: etensor.FLOAT64},
		{Name: "DynamicsUS", Type: etensor.FLOAT64},
		{Name: "TransferUS", Type: etensor.FLOAT64},
		{Name: "TotalUS", Type: etensor.FLOAT64},
		{Name: "Processed", Type: etensor.INT64},
		{Name: "Fired", Type: etensor.INT64},
		{Name: "Refractory", Type: etensor.INT64},
	}
	dt.SetFromSchema(sch, 0)
}

// AddBurst appends one row from a burst result.
func (tl *TimingLog) AddBurst(burst uint64, res *BurstResult) {
	dt := tl.Log
	row := dt.Rows
	dt.SetNumRows(row + 1)
	dt.SetCellFloat("Burst", row, float64(burst))
	dt.SetCellFloat("PropagationUS", row, float64(res.Timing.PropagationUS))
	dt.SetCellFloat("DynamicsUS", row, float64(res.Timing.DynamicsUS))
	dt.SetCellFloat("TransferUS", row, float64(res.Timing.TransferUS))
	dt.SetCellFloat("TotalUS", row, float64(res.Timing.TotalUS))
	dt.SetCellFloat("Processed", row, float64(res.Processed))
	dt.SetCellFloat("Fired", row, float64(res.NumFired))
	dt.SetCellFloat("Refractory", row, float64(res.Refractory))
}

// Table returns the underlying log table.
func (tl *TimingLog) Table() *etable.Table {
	return tl.Log
}
