package scheme

// The fixed textual fragments of every emitted assembly file.  The
// runtime library (runtime.asm, included by Prologue1) supplies
// malloc, bind_primitive, print_sexpr_if_not_void, the primitive code
// pointers and the error handlers the generated code jumps to.

// Prologue1 opens the file: frame-access macros, the runtime type
// tags, and the start of the data section holding both tables.
const Prologue1 = `;;; Generated by scheme-compiler-in-go.  Do not edit.

%define T_void 1
%define T_nil 2
%define T_boolean_false 3
%define T_boolean_true 4
%define T_char 5
%define T_string 6
%define T_interned_symbol 7
%define T_integer 8
%define T_fraction 9
%define T_real 10
%define T_vector 11
%define T_pair 12
%define T_closure 13
%define T_undefined 14

%define PARAM(n) qword [rbp + 8*(4 + n)]
%define ENV qword [rbp + 8*2]
%define COUNT qword [rbp + 8*3]
%define AND_KILL_FRAME(n) (8 * (n + 2))
%define SOB_CLOSURE_ENV(r) [r + 1]
%define SOB_CLOSURE_CODE(r) [r + 9]

%define sob_void (L_constants + 0)
%define sob_nil (L_constants + 1)
%define sob_boolean_false (L_constants + 2)
%define sob_boolean_true (L_constants + 3)
%define sob_char_nul (L_constants + 4)

%include "runtime.asm"

section .data
`

// Prologue2 opens the text section and fabricates the top-level
// frame, so that ENV, COUNT and PARAM are valid before the first
// closure is entered.
const Prologue2 = `
section .text
global main
main:
	push 0		; the top-level argument count
	push 0		; the top-level environment
	push L_program_done
	push rbp
	mov rbp, rsp

`

// Epilogue ends the program.
const Epilogue = `
L_program_done:
	mov rax, 60	; sys_exit
	xor rdi, rdi
	syscall
`
