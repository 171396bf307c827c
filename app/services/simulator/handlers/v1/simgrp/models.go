package simgrp

// NewSimulation is what is required from clients to start a run.
type NewSimulation struct {
	NumBlocks int `json:"num_blocks" validate:"required,gte=1,lte=512"`
}
