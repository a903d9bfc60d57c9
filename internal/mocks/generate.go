// Package mocks provides mock implementations for testing the social media monitor.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ClaimNext, Complete, Retry, Cancel, CountPending, CountRunning, StatusSummary, List
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core JobRepository

// Generate mock for the rate limited Collector capability from internal/collector.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=collector_mock.go github.com/JuliaLoth/NLWW-socialmediamonitor/internal/collector Collector
