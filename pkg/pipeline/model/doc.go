// Package model provides the data structures shared by the recipe executor
// and its instrumentation options: the description of one instruction and
// the hooks an option implements.
package model
