// Package render turns query agent responses into display-ready views.
package render
