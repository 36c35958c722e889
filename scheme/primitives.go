package scheme

// The primitive procedures live in the assembly runtime.  The compiler
// only knows their Scheme names and the labels of their code pointers;
// the startup code of every generated program binds each name to a
// closure over the matching label via bind_primitive.

// Primitive maps a Scheme name to its runtime code-pointer label.
type Primitive struct {
	Name  string
	Label string
}

// Primitives is the fixed table of built-in procedures.  Every name
// here is seeded into the free-variables table, and its name string
// into the constants table, of every compiled program.
var Primitives = []Primitive{
	{"null?", "L_code_ptr_is_null"},
	{"pair?", "L_code_ptr_is_pair"},
	{"boolean?", "L_code_ptr_is_boolean"},
	{"char?", "L_code_ptr_is_char"},
	{"string?", "L_code_ptr_is_string"},
	{"interned-symbol?", "L_code_ptr_is_symbol"},
	{"vector?", "L_code_ptr_is_vector"},
	{"procedure?", "L_code_ptr_is_closure"},
	{"integer?", "L_code_ptr_is_integer"},
	{"fraction?", "L_code_ptr_is_fraction"},
	{"real?", "L_code_ptr_is_real"},
	{"number?", "L_code_ptr_is_number"},
	{"zero?", "L_code_ptr_is_zero"},
	{"eq?", "L_code_ptr_is_eq"},
	{"cons", "L_code_ptr_cons"},
	{"car", "L_code_ptr_car"},
	{"cdr", "L_code_ptr_cdr"},
	{"set-car!", "L_code_ptr_set_car"},
	{"set-cdr!", "L_code_ptr_set_cdr"},
	{"string-length", "L_code_ptr_string_length"},
	{"string-ref", "L_code_ptr_string_ref"},
	{"string-set!", "L_code_ptr_string_set"},
	{"make-string", "L_code_ptr_make_string"},
	{"vector-length", "L_code_ptr_vector_length"},
	{"vector-ref", "L_code_ptr_vector_ref"},
	{"vector-set!", "L_code_ptr_vector_set"},
	{"make-vector", "L_code_ptr_make_vector"},
	{"char->integer", "L_code_ptr_char_to_integer"},
	{"integer->char", "L_code_ptr_integer_to_char"},
	{"integer->real", "L_code_ptr_integer_to_real"},
	{"fraction->real", "L_code_ptr_fraction_to_real"},
	{"real->integer", "L_code_ptr_real_to_integer"},
	{"numerator", "L_code_ptr_numerator"},
	{"denominator", "L_code_ptr_denominator"},
	{"quotient", "L_code_ptr_quotient"},
	{"remainder", "L_code_ptr_remainder"},
	{"__bin-add-zz", "L_code_ptr_raw_bin_add_zz"},
	{"__bin-sub-zz", "L_code_ptr_raw_bin_sub_zz"},
	{"__bin-mul-zz", "L_code_ptr_raw_bin_mul_zz"},
	{"__bin-div-zz", "L_code_ptr_raw_bin_div_zz"},
	{"__bin-add-qq", "L_code_ptr_raw_bin_add_qq"},
	{"__bin-sub-qq", "L_code_ptr_raw_bin_sub_qq"},
	{"__bin-mul-qq", "L_code_ptr_raw_bin_mul_qq"},
	{"__bin-div-qq", "L_code_ptr_raw_bin_div_qq"},
	{"__bin-add-rr", "L_code_ptr_raw_bin_add_rr"},
	{"__bin-sub-rr", "L_code_ptr_raw_bin_sub_rr"},
	{"__bin-mul-rr", "L_code_ptr_raw_bin_mul_rr"},
	{"__bin-div-rr", "L_code_ptr_raw_bin_div_rr"},
	{"__bin-less-than-zz", "L_code_ptr_raw_less_than_zz"},
	{"__bin-less-than-qq", "L_code_ptr_raw_less_than_qq"},
	{"__bin-less-than-rr", "L_code_ptr_raw_less_than_rr"},
	{"__bin-equal-zz", "L_code_ptr_raw_equal_zz"},
	{"__bin-equal-qq", "L_code_ptr_raw_equal_qq"},
	{"__bin-equal-rr", "L_code_ptr_raw_equal_rr"},
	{"apply", "L_code_ptr_bin_apply"},
	{"error", "L_code_ptr_error"},
	{"exit", "L_code_ptr_exit"},
	{"gensym", "L_code_ptr_gensym"},
	{"trng", "L_code_ptr_trng"},
}
