// Package validation provides the argument checks shared by psconcurrent
// constructors and setters.
//
// Every helper returns a *errors.ValidationError so callers get consistent
// messages and can classify failures with errors.Is.
package validation
