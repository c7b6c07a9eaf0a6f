package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("submission queue is full")
	ErrNoStudents   = errors.New("student records are not configured")
)
