// Package compile ties the backends together behind one configuration
// value and entry point: Config names the backend, register allocation
// strategy, and pipeline dispatch mode (spec §6.1, §9.3), and
// Program.Translate hands a fully-built ir.Program to whichever
// backend Config selects.
package compile
