// Package flows implements every authentication operation as a plain
// function over a Deps value: token issue and rotation, login, registration,
// email verification, password reset and change, two-factor setup, and
// third-party sign-in.
//
// # Architecture boundaries
//
// Flows receive all collaborators through Deps and never construct clients.
// Errors surfaced to callers are the values carried in Deps.Errors; anything
// unexpected is logged and mapped to Errors.Internal. The root package builds
// Deps once and exposes the flows through Engine.
package flows
