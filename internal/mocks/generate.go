// Package mocks provides gomock implementations of the identity and directory ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	identity := mocks.NewMockIdentityService(ctrl)
//	identity.EXPECT().SignOut(gomock.Any()).Return(nil).Times(1)
package mocks

// Generate mock for IdentityService interface from internal/ports package.
// This creates MockIdentityService with methods for all IdentityService interface methods:
// GetCurrentSession, SubscribeToChanges, SignOut, SignInWithPassword, SignInWithOAuth, CompleteOAuth
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_service_mock.go github.com/target/hotelease-portal/internal/ports IdentityService

// Generate mock for Directory interface from internal/ports package.
// This creates MockDirectory with methods for all Directory interface methods:
// LookupRole
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=directory_mock.go github.com/target/hotelease-portal/internal/ports Directory
