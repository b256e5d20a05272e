// Package core implements the actor runtime for jobflow.
//
// This package provides the basic building blocks including Actor,
// Message, and per-job tracking that host the pipeline stage
// processors. Each actor drains its mailbox strictly in arrival
// order; distinct actors run concurrently and share no state.
package core
