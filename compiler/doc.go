/*

Process of compilation

Host Value ->
	lower ->
Value Handles (build) ->
	BuildFunc ->
Intermediate Representation (ir) ->
	interp ->
Result
	or
	llvm ->
LLVM Module

*/
package compiler
