package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Opcode identifies an instruction. The numbering is the VM's own and is
// stable across releases; gaps are never reused.
type Opcode uint8

const (
	// Arithmetic and comparison
	OpNop              Opcode = 0
	OpAdd              Opcode = 1
	OpSub              Opcode = 2
	OpMul              Opcode = 3
	OpDiv              Opcode = 4
	OpMod              Opcode = 5
	OpSl               Opcode = 6
	OpSr               Opcode = 7
	OpConcat           Opcode = 8
	OpBwOr             Opcode = 9
	OpBwAnd            Opcode = 10
	OpBwXor            Opcode = 11
	OpPow              Opcode = 12
	OpBwNot            Opcode = 13
	OpBoolNot          Opcode = 14
	OpBoolXor          Opcode = 15
	OpIsIdentical      Opcode = 16
	OpIsNotIdentical   Opcode = 17
	OpIsEqual          Opcode = 18
	OpIsNotEqual       Opcode = 19
	OpIsSmaller        Opcode = 20
	OpIsSmallerOrEqual Opcode = 21

	// Assignment
	OpAssign              Opcode = 22
	OpAssignDim           Opcode = 23
	OpAssignObj           Opcode = 24
	OpAssignStaticProp    Opcode = 25
	OpAssignOp            Opcode = 26
	OpAssignDimOp         Opcode = 27
	OpAssignObjOp         Opcode = 28
	OpAssignStaticPropOp  Opcode = 29
	OpAssignRef           Opcode = 30
	OpQmAssign            Opcode = 31
	OpAssignObjRef        Opcode = 32
	OpAssignStaticPropRef Opcode = 33

	// Increment and decrement
	OpPreInc            Opcode = 34
	OpPreDec            Opcode = 35
	OpPostInc           Opcode = 36
	OpPostDec           Opcode = 37
	OpPreIncStaticProp  Opcode = 38
	OpPreDecStaticProp  Opcode = 39
	OpPostIncStaticProp Opcode = 40
	OpPostDecStaticProp Opcode = 41

	// Control flow
	OpJmp     Opcode = 42
	OpJmpz    Opcode = 43
	OpJmpnz   Opcode = 44
	OpJmpznz  Opcode = 45
	OpJmpzEx  Opcode = 46
	OpJmpnzEx Opcode = 47

	// Calls, casts and strings
	OpCase              Opcode = 48
	OpCheckVar          Opcode = 49
	OpSendVarNoRefEx    Opcode = 50
	OpCast              Opcode = 51
	OpBool              Opcode = 52
	OpFastConcat        Opcode = 53
	OpRopeInit          Opcode = 54
	OpRopeAdd           Opcode = 55
	OpRopeEnd           Opcode = 56
	OpBeginSilence      Opcode = 57
	OpEndSilence        Opcode = 58
	OpInitFcallByName   Opcode = 59
	OpDoFcall           Opcode = 60
	OpInitFcall         Opcode = 61
	OpReturn            Opcode = 62
	OpRecv              Opcode = 63
	OpRecvInit          Opcode = 64
	OpSendVal           Opcode = 65
	OpSendVarEx         Opcode = 66
	OpSendRef           Opcode = 67
	OpNew               Opcode = 68
	OpInitNsFcallByName Opcode = 69

	// Arrays, includes and unset
	OpFree            Opcode = 70
	OpInitArray       Opcode = 71
	OpAddArrayElement Opcode = 72
	OpIncludeOrEval   Opcode = 73
	OpUnsetVar        Opcode = 74
	OpUnsetDim        Opcode = 75
	OpUnsetObj        Opcode = 76

	// Iteration, fetches and exit
	OpFeResetR        Opcode = 77
	OpFeFetchR        Opcode = 78
	OpExit            Opcode = 79
	OpFetchR          Opcode = 80
	OpFetchDimR       Opcode = 81
	OpFetchObjR       Opcode = 82
	OpFetchW          Opcode = 83
	OpFetchDimW       Opcode = 84
	OpFetchObjW       Opcode = 85
	OpFetchRw         Opcode = 86
	OpFetchDimRw      Opcode = 87
	OpFetchObjRw      Opcode = 88
	OpFetchIs         Opcode = 89
	OpFetchDimIs      Opcode = 90
	OpFetchObjIs      Opcode = 91
	OpFetchFuncArg    Opcode = 92
	OpFetchDimFuncArg Opcode = 93
	OpFetchObjFuncArg Opcode = 94
	OpFetchUnset      Opcode = 95
	OpFetchDimUnset   Opcode = 96
	OpFetchObjUnset   Opcode = 97
	OpFetchListR      Opcode = 98

	// Constants, calls and exceptions
	OpFetchConstant        Opcode = 99
	OpCheckFuncArg         Opcode = 100
	OpExtStmt              Opcode = 101
	OpExtFcallBegin        Opcode = 102
	OpExtFcallEnd          Opcode = 103
	OpExtNop               Opcode = 104
	OpTicks                Opcode = 105
	OpSendVarNoRef         Opcode = 106
	OpCatch                Opcode = 107
	OpThrow                Opcode = 108
	OpFetchClass           Opcode = 109
	OpClone                Opcode = 110
	OpReturnByRef          Opcode = 111
	OpInitMethodCall       Opcode = 112
	OpInitStaticMethodCall Opcode = 113
	OpIssetIsemptyVar      Opcode = 114
	OpIssetIsemptyDimObj   Opcode = 115
	OpSendValEx            Opcode = 116
	OpSendVar              Opcode = 117
	OpInitUserCall         Opcode = 118
	OpSendArray            Opcode = 119
	OpSendUser             Opcode = 120
	OpStrlen               Opcode = 121
	OpDefined              Opcode = 122
	OpTypeCheck            Opcode = 123
	OpVerifyReturnType     Opcode = 124

	// Iteration and calls
	OpFeResetRw       Opcode = 125
	OpFeFetchRw       Opcode = 126
	OpFeFree          Opcode = 127
	OpInitDynamicCall Opcode = 128
	OpDoIcall         Opcode = 129
	OpDoUcall         Opcode = 130
	OpDoFcallByName   Opcode = 131

	// Object increments, echo and declarations
	OpPreIncObj             Opcode = 132
	OpPreDecObj             Opcode = 133
	OpPostIncObj            Opcode = 134
	OpPostDecObj            Opcode = 135
	OpEcho                  Opcode = 136
	OpOpData                Opcode = 137
	OpInstanceof            Opcode = 138
	OpGeneratorCreate       Opcode = 139
	OpMakeRef               Opcode = 140
	OpDeclareFunction       Opcode = 141
	OpDeclareLambdaFunction Opcode = 142
	OpDeclareConst          Opcode = 143
	OpDeclareClass          Opcode = 144
	OpDeclareClassDelayed   Opcode = 145
	OpDeclareAnonClass      Opcode = 146
	OpAddArrayUnpack        Opcode = 147
	OpIssetIsemptyPropObj   Opcode = 148

	// Exceptions, generators and misc
	OpHandleException  Opcode = 149
	OpUserOpcode       Opcode = 150
	OpAssertCheck      Opcode = 151
	OpJmpSet           Opcode = 152
	OpUnsetCv          Opcode = 153
	OpIssetIsemptyCv   Opcode = 154
	OpFetchListW       Opcode = 155
	OpSeparate         Opcode = 156
	OpFetchClassName   Opcode = 157
	OpCallTrampoline   Opcode = 158
	OpDiscardException Opcode = 159
	OpYield            Opcode = 160
	OpGeneratorReturn  Opcode = 161
	OpFastCall         Opcode = 162
	OpFastRet          Opcode = 163
	OpRecvVariadic     Opcode = 164
	OpSendUnpack       Opcode = 165
	OpYieldFrom        Opcode = 166
	OpCopyTmp          Opcode = 167
	OpBindGlobal       Opcode = 168
	OpCoalesce         Opcode = 169
	OpSpaceship        Opcode = 170
	OpFuncNumArgs      Opcode = 171
	OpFuncGetArgs      Opcode = 172

	// Static properties and class constants
	OpFetchStaticPropR       Opcode = 173
	OpFetchStaticPropW       Opcode = 174
	OpFetchStaticPropRw      Opcode = 175
	OpFetchStaticPropIs      Opcode = 176
	OpFetchStaticPropFuncArg Opcode = 177
	OpFetchStaticPropUnset   Opcode = 178
	OpUnsetStaticProp        Opcode = 179
	OpIssetIsemptyStaticProp Opcode = 180
	OpFetchClassConstant     Opcode = 181

	// Closures, switches and builtins
	OpBindLexical         Opcode = 182
	OpBindStatic          Opcode = 183
	OpFetchThis           Opcode = 184
	OpSendFuncArg         Opcode = 185
	OpIssetIsemptyThis    Opcode = 186
	OpSwitchLong          Opcode = 187
	OpSwitchString        Opcode = 188
	OpInArray             Opcode = 189
	OpCount               Opcode = 190
	OpGetClass            Opcode = 191
	OpGetCalledClass      Opcode = 192
	OpGetType             Opcode = 193
	OpArrayKeyExists      Opcode = 194
	OpMatch               Opcode = 195
	OpCaseStrict          Opcode = 196
	OpMatchError          Opcode = 197
	OpJmpNull             Opcode = 198
	OpCheckUndefArgs      Opcode = 199
	OpFetchGlobals        Opcode = 200
	OpVerifyNeverType     Opcode = 201
	OpCallableConvert     Opcode = 202
	OpBindInitStaticOrJmp Opcode = 203
)

// OpcodeInfo provides the mnemonic and operand layout of an opcode.
type OpcodeInfo struct {
	Name string
	Sig  Signature
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Arithmetic and comparison
	OpNop:              {"NOP", sig(unused, unused, unused)},
	OpAdd:              {"ADD", sig(tmpVal, anyVal, anyVal)},
	OpSub:              {"SUB", sig(tmpVal, anyVal, anyVal)},
	OpMul:              {"MUL", sig(tmpVal, anyVal, anyVal)},
	OpDiv:              {"DIV", sig(tmpVal, anyVal, anyVal)},
	OpMod:              {"MOD", sig(tmpVal, anyVal, anyVal)},
	OpSl:               {"SL", sig(tmpVal, anyVal, anyVal)},
	OpSr:               {"SR", sig(tmpVal, anyVal, anyVal)},
	OpConcat:           {"CONCAT", sig(tmpVal, anyVal, anyVal)},
	OpBwOr:             {"BW_OR", sig(tmpVal, anyVal, anyVal)},
	OpBwAnd:            {"BW_AND", sig(tmpVal, anyVal, anyVal)},
	OpBwXor:            {"BW_XOR", sig(tmpVal, anyVal, anyVal)},
	OpPow:              {"POW", sig(tmpVal, anyVal, anyVal)},
	OpBwNot:            {"BW_NOT", sig(tmpVal, anyVal, unused)},
	OpBoolNot:          {"BOOL_NOT", sig(tmpVal, anyVal, unused)},
	OpBoolXor:          {"BOOL_XOR", sig(tmpVal, anyVal, anyVal)},
	OpIsIdentical:      {"IS_IDENTICAL", sig(tmpVal, anyVal, anyVal)},
	OpIsNotIdentical:   {"IS_NOT_IDENTICAL", sig(tmpVal, anyVal, anyVal)},
	OpIsEqual:          {"IS_EQUAL", sig(tmpVal, anyVal, anyVal)},
	OpIsNotEqual:       {"IS_NOT_EQUAL", sig(tmpVal, anyVal, anyVal)},
	OpIsSmaller:        {"IS_SMALLER", sig(tmpVal, anyVal, anyVal)},
	OpIsSmallerOrEqual: {"IS_SMALLER_OR_EQUAL", sig(tmpVal, anyVal, anyVal)},

	// Assignment
	OpAssign:              {"ASSIGN", sig(tmpCV, anyVal, unused)},
	OpAssignDim:           {"ASSIGN_DIM", sig(tmpVal, tmpCV, anyVal)},
	OpAssignObj:           {"ASSIGN_OBJ", sig(tmpVal, tmpCV, constTmp)},
	OpAssignStaticProp:    {"ASSIGN_STATIC_PROP", sig(tmpVal, constTmp, classRef)},
	OpAssignOp:            {"ASSIGN_OP", sig(tmpVal, tmpCV, anyVal).ext(ExtFamily)},
	OpAssignDimOp:         {"ASSIGN_DIM_OP", sig(tmpVal, tmpCV, anyVal).ext(ExtFamily)},
	OpAssignObjOp:         {"ASSIGN_OBJ_OP", sig(tmpVal, tmpCV, constTmp).ext(ExtFamily)},
	OpAssignStaticPropOp:  {"ASSIGN_STATIC_PROP_OP", sig(tmpVal, constTmp, classRef).ext(ExtFamily)},
	OpAssignRef:           {"ASSIGN_REF", sig(tmpCV, tmpCV, tmpCV)},
	OpQmAssign:            {"QM_ASSIGN", sig(tmpVal, anyVal, unused)},
	OpAssignObjRef:        {"ASSIGN_OBJ_REF", sig(tmpVal, tmpCV, constTmp)},
	OpAssignStaticPropRef: {"ASSIGN_STATIC_PROP_REF", sig(tmpVal, constTmp, classRef)},

	// Increment and decrement
	OpPreInc:            {"PRE_INC", sig(tmpVal, tmpCV, unused)},
	OpPreDec:            {"PRE_DEC", sig(tmpVal, tmpCV, unused)},
	OpPostInc:           {"POST_INC", sig(tmpVal, tmpCV, unused)},
	OpPostDec:           {"POST_DEC", sig(tmpVal, tmpCV, unused)},
	OpPreIncStaticProp:  {"PRE_INC_STATIC_PROP", sig(tmpVal, constTmp, classRef)},
	OpPreDecStaticProp:  {"PRE_DEC_STATIC_PROP", sig(tmpVal, constTmp, classRef)},
	OpPostIncStaticProp: {"POST_INC_STATIC_PROP", sig(tmpVal, constTmp, classRef)},
	OpPostDecStaticProp: {"POST_DEC_STATIC_PROP", sig(tmpVal, constTmp, classRef)},

	// Control flow
	OpJmp:     {"JMP", sig(unused, jump, unused)},
	OpJmpz:    {"JMPZ", sig(unused, anyVal, jump)},
	OpJmpnz:   {"JMPNZ", sig(unused, anyVal, jump)},
	OpJmpznz:  {"JMPZNZ", sig(unused, anyVal, jump).ext(ExtJump)},
	OpJmpzEx:  {"JMPZ_EX", sig(tmpVal, anyVal, jump)},
	OpJmpnzEx: {"JMPNZ_EX", sig(tmpVal, anyVal, jump)},

	// Calls, casts and strings
	OpCase:              {"CASE", sig(tmpVal, tmpVal, anyVal)},
	OpCheckVar:          {"CHECK_VAR", sig(unused, cvVal, unused)},
	OpSendVarNoRefEx:    {"SEND_VAR_NO_REF_EX", sig(unused, tmpCV, sendArg)},
	OpCast:              {"CAST", sig(tmpVal, anyVal, unused).ext(ExtCast)},
	OpBool:              {"BOOL", sig(tmpVal, anyVal, unused)},
	OpFastConcat:        {"FAST_CONCAT", sig(tmpVal, anyVal, anyVal)},
	OpRopeInit:          {"ROPE_INIT", sig(tmpVal, unused, anyVal).ext(ExtRaw)},
	OpRopeAdd:           {"ROPE_ADD", sig(tmpVal, tmpVal, anyVal).ext(ExtRaw)},
	OpRopeEnd:           {"ROPE_END", sig(tmpVal, tmpVal, anyVal).ext(ExtRaw)},
	OpBeginSilence:      {"BEGIN_SILENCE", sig(tmpVal, unused, unused)},
	OpEndSilence:        {"END_SILENCE", sig(unused, tmpVal, unused)},
	OpInitFcallByName:   {"INIT_FCALL_BY_NAME", sig(unused, unused, constVal).ext(ExtArgCount)},
	OpDoFcall:           {"DO_FCALL", sig(tmpVal, unused, unused)},
	OpInitFcall:         {"INIT_FCALL", sig(unused, intLit, constVal).ext(ExtArgCount)},
	OpReturn:            {"RETURN", sig(unused, anyVal, unused)},
	OpRecv:              {"RECV", sig(cvVal, argNum, unused)},
	OpRecvInit:          {"RECV_INIT", sig(cvVal, argNum, constVal)},
	OpSendVal:           {"SEND_VAL", sig(unused, constTmp, sendArg)},
	OpSendVarEx:         {"SEND_VAR_EX", sig(unused, tmpCV, sendArg)},
	OpSendRef:           {"SEND_REF", sig(unused, tmpCV, sendArg)},
	OpNew:               {"NEW", sig(tmpVal, classRef, unused).ext(ExtArgCount)},
	OpInitNsFcallByName: {"INIT_NS_FCALL_BY_NAME", sig(unused, unused, constVal).ext(ExtArgCount)},

	// Arrays, includes and unset
	OpFree:            {"FREE", sig(unused, tmpVal, unused)},
	OpInitArray:       {"INIT_ARRAY", sig(tmpVal, anyVal, anyVal).ext(ExtRaw)},
	OpAddArrayElement: {"ADD_ARRAY_ELEMENT", sig(tmpVal, anyVal, anyVal)},
	OpIncludeOrEval:   {"INCLUDE_OR_EVAL", sig(tmpVal, anyVal, unused).ext(ExtFamily)},
	OpUnsetVar:        {"UNSET_VAR", sig(unused, constTmp, unused).ext(ExtFetch)},
	OpUnsetDim:        {"UNSET_DIM", sig(unused, tmpCV, anyVal)},
	OpUnsetObj:        {"UNSET_OBJ", sig(unused, tmpCV, constTmp)},

	// Iteration, fetches and exit
	OpFeResetR:        {"FE_RESET_R", sig(tmpVal, anyVal, jump)},
	OpFeFetchR:        {"FE_FETCH_R", sig(tmpVal, tmpVal, tmpCV).ext(ExtJump)},
	OpExit:            {"EXIT", sig(unused, anyVal, unused)},
	OpFetchR:          {"FETCH_R", sig(tmpVal, constTmp, unused).ext(ExtFetch)},
	OpFetchDimR:       {"FETCH_DIM_R", sig(tmpVal, anyVal, anyVal)},
	OpFetchObjR:       {"FETCH_OBJ_R", sig(tmpVal, anyVal, constTmp)},
	OpFetchW:          {"FETCH_W", sig(tmpVal, constTmp, unused).ext(ExtFetch)},
	OpFetchDimW:       {"FETCH_DIM_W", sig(tmpVal, tmpCV, anyVal)},
	OpFetchObjW:       {"FETCH_OBJ_W", sig(tmpVal, tmpCV, constTmp)},
	OpFetchRw:         {"FETCH_RW", sig(tmpVal, constTmp, unused).ext(ExtFetch)},
	OpFetchDimRw:      {"FETCH_DIM_RW", sig(tmpVal, tmpCV, anyVal)},
	OpFetchObjRw:      {"FETCH_OBJ_RW", sig(tmpVal, tmpCV, constTmp)},
	OpFetchIs:         {"FETCH_IS", sig(tmpVal, constTmp, unused).ext(ExtFetch)},
	OpFetchDimIs:      {"FETCH_DIM_IS", sig(tmpVal, anyVal, anyVal)},
	OpFetchObjIs:      {"FETCH_OBJ_IS", sig(tmpVal, anyVal, constTmp)},
	OpFetchFuncArg:    {"FETCH_FUNC_ARG", sig(tmpVal, constTmp, unused).ext(ExtFetch)},
	OpFetchDimFuncArg: {"FETCH_DIM_FUNC_ARG", sig(tmpVal, tmpCV, anyVal)},
	OpFetchObjFuncArg: {"FETCH_OBJ_FUNC_ARG", sig(tmpVal, tmpCV, constTmp)},
	OpFetchUnset:      {"FETCH_UNSET", sig(tmpVal, constTmp, unused).ext(ExtFetch)},
	OpFetchDimUnset:   {"FETCH_DIM_UNSET", sig(tmpVal, tmpCV, anyVal)},
	OpFetchObjUnset:   {"FETCH_OBJ_UNSET", sig(tmpVal, tmpCV, constTmp)},
	OpFetchListR:      {"FETCH_LIST_R", sig(tmpVal, anyVal, anyVal)},

	// Constants, calls and exceptions
	OpFetchConstant:        {"FETCH_CONSTANT", sig(tmpVal, unused, constVal)},
	OpCheckFuncArg:         {"CHECK_FUNC_ARG", sig(unused, unused, sendArg)},
	OpExtStmt:              {"EXT_STMT", sig(unused, unused, unused)},
	OpExtFcallBegin:        {"EXT_FCALL_BEGIN", sig(unused, unused, unused)},
	OpExtFcallEnd:          {"EXT_FCALL_END", sig(unused, unused, unused)},
	OpExtNop:               {"EXT_NOP", sig(unused, unused, unused)},
	OpTicks:                {"TICKS", sig(unused, unused, unused).ext(ExtRaw)},
	OpSendVarNoRef:         {"SEND_VAR_NO_REF", sig(unused, tmpCV, sendArg)},
	OpCatch:                {"CATCH", sig(cvVal, constVal, optJump)},
	OpThrow:                {"THROW", sig(unused, anyVal, unused)},
	OpFetchClass:           {"FETCH_CLASS", sig(tmpVal, unused, classRef).ext(ExtRaw)},
	OpClone:                {"CLONE", sig(tmpVal, anyVal, unused)},
	OpReturnByRef:          {"RETURN_BY_REF", sig(unused, anyVal, unused)},
	OpInitMethodCall:       {"INIT_METHOD_CALL", sig(unused, tmpCV, constTmp).ext(ExtArgCount)},
	OpInitStaticMethodCall: {"INIT_STATIC_METHOD_CALL", sig(unused, classRef, constTmp).ext(ExtArgCount)},
	OpIssetIsemptyVar:      {"ISSET_ISEMPTY_VAR", sig(tmpVal, constTmp, unused).ext(ExtRaw)},
	OpIssetIsemptyDimObj:   {"ISSET_ISEMPTY_DIM_OBJ", sig(tmpVal, tmpCV, anyVal).ext(ExtRaw)},
	OpSendValEx:            {"SEND_VAL_EX", sig(unused, constTmp, sendArg)},
	OpSendVar:              {"SEND_VAR", sig(unused, tmpCV, sendArg)},
	OpInitUserCall:         {"INIT_USER_CALL", sig(unused, constVal, anyVal).ext(ExtArgCount)},
	OpSendArray:            {"SEND_ARRAY", sig(unused, anyVal, anyVal).ext(ExtRaw)},
	OpSendUser:             {"SEND_USER", sig(unused, tmpCV, sendArg)},
	OpStrlen:               {"STRLEN", sig(tmpVal, anyVal, unused)},
	OpDefined:              {"DEFINED", sig(tmpVal, constVal, unused)},
	OpTypeCheck:            {"TYPE_CHECK", sig(tmpVal, anyVal, unused).ext(ExtRaw)},
	OpVerifyReturnType:     {"VERIFY_RETURN_TYPE", sig(tmpVal, anyVal, unused)},

	// Iteration and calls
	OpFeResetRw:       {"FE_RESET_RW", sig(tmpVal, tmpCV, jump)},
	OpFeFetchRw:       {"FE_FETCH_RW", sig(tmpVal, tmpVal, tmpCV).ext(ExtJump)},
	OpFeFree:          {"FE_FREE", sig(unused, tmpVal, unused)},
	OpInitDynamicCall: {"INIT_DYNAMIC_CALL", sig(unused, unused, anyVal).ext(ExtArgCount)},
	OpDoIcall:         {"DO_ICALL", sig(tmpVal, unused, unused)},
	OpDoUcall:         {"DO_UCALL", sig(tmpVal, unused, unused)},
	OpDoFcallByName:   {"DO_FCALL_BY_NAME", sig(tmpVal, unused, unused)},

	// Object increments, echo and declarations
	OpPreIncObj:             {"PRE_INC_OBJ", sig(tmpVal, tmpCV, constTmp)},
	OpPreDecObj:             {"PRE_DEC_OBJ", sig(tmpVal, tmpCV, constTmp)},
	OpPostIncObj:            {"POST_INC_OBJ", sig(tmpVal, tmpCV, constTmp)},
	OpPostDecObj:            {"POST_DEC_OBJ", sig(tmpVal, tmpCV, constTmp)},
	OpEcho:                  {"ECHO", sig(unused, anyVal, unused)},
	OpOpData:                {"OP_DATA", sig(unused, anyVal, unused)},
	OpInstanceof:            {"INSTANCEOF", sig(tmpVal, tmpCV, classRef)},
	OpGeneratorCreate:       {"GENERATOR_CREATE", sig(tmpVal, unused, unused)},
	OpMakeRef:               {"MAKE_REF", sig(tmpVal, tmpCV, unused)},
	OpDeclareFunction:       {"DECLARE_FUNCTION", sig(unused, constVal, unused).ext(ExtRaw)},
	OpDeclareLambdaFunction: {"DECLARE_LAMBDA_FUNCTION", sig(tmpVal, constVal, unused)},
	OpDeclareConst:          {"DECLARE_CONST", sig(unused, constVal, constVal)},
	OpDeclareClass:          {"DECLARE_CLASS", sig(tmpVal, constVal, constVal)},
	OpDeclareClassDelayed:   {"DECLARE_CLASS_DELAYED", sig(unused, constVal, constVal)},
	OpDeclareAnonClass:      {"DECLARE_ANON_CLASS", sig(tmpVal, constVal, unused)},
	OpAddArrayUnpack:        {"ADD_ARRAY_UNPACK", sig(tmpVal, anyVal, unused)},
	OpIssetIsemptyPropObj:   {"ISSET_ISEMPTY_PROP_OBJ", sig(tmpVal, tmpCV, constTmp).ext(ExtRaw)},

	// Exceptions, generators and misc
	OpHandleException:  {"HANDLE_EXCEPTION", sig(unused, unused, unused)},
	OpUserOpcode:       {"USER_OPCODE", sig(rawVal, rawVal, rawVal).ext(ExtRaw)},
	OpAssertCheck:      {"ASSERT_CHECK", sig(tmpVal, unused, jump)},
	OpJmpSet:           {"JMP_SET", sig(tmpVal, anyVal, jump)},
	OpUnsetCv:          {"UNSET_CV", sig(unused, cvVal, unused).killsOp1()},
	OpIssetIsemptyCv:   {"ISSET_ISEMPTY_CV", sig(tmpVal, cvVal, unused).ext(ExtRaw)},
	OpFetchListW:       {"FETCH_LIST_W", sig(tmpVal, tmpCV, anyVal)},
	OpSeparate:         {"SEPARATE", sig(tmpVal, tmpCV, unused)},
	OpFetchClassName:   {"FETCH_CLASS_NAME", sig(tmpVal, classRef, unused)},
	OpCallTrampoline:   {"CALL_TRAMPOLINE", sig(unused, unused, unused)},
	OpDiscardException: {"DISCARD_EXCEPTION", sig(unused, tmpVal, unused)},
	OpYield:            {"YIELD", sig(tmpVal, anyVal, anyVal)},
	OpGeneratorReturn:  {"GENERATOR_RETURN", sig(unused, anyVal, unused)},
	OpFastCall:         {"FAST_CALL", sig(tmpVal, jump, unused)},
	OpFastRet:          {"FAST_RET", sig(unused, tmpVal, unused).ext(ExtRaw)},
	OpRecvVariadic:     {"RECV_VARIADIC", sig(cvVal, argNum, unused)},
	OpSendUnpack:       {"SEND_UNPACK", sig(unused, anyVal, unused)},
	OpYieldFrom:        {"YIELD_FROM", sig(tmpVal, anyVal, unused)},
	OpCopyTmp:          {"COPY_TMP", sig(tmpVal, tmpVal, unused)},
	OpBindGlobal:       {"BIND_GLOBAL", sig(unused, cvVal, constVal)},
	OpCoalesce:         {"COALESCE", sig(tmpVal, anyVal, jump)},
	OpSpaceship:        {"SPACESHIP", sig(tmpVal, anyVal, anyVal)},
	OpFuncNumArgs:      {"FUNC_NUM_ARGS", sig(tmpVal, unused, unused)},
	OpFuncGetArgs:      {"FUNC_GET_ARGS", sig(tmpVal, constVal, unused)},

	// Static properties and class constants
	OpFetchStaticPropR:       {"FETCH_STATIC_PROP_R", sig(tmpVal, constTmp, classRef)},
	OpFetchStaticPropW:       {"FETCH_STATIC_PROP_W", sig(tmpVal, constTmp, classRef)},
	OpFetchStaticPropRw:      {"FETCH_STATIC_PROP_RW", sig(tmpVal, constTmp, classRef)},
	OpFetchStaticPropIs:      {"FETCH_STATIC_PROP_IS", sig(tmpVal, constTmp, classRef)},
	OpFetchStaticPropFuncArg: {"FETCH_STATIC_PROP_FUNC_ARG", sig(tmpVal, constTmp, classRef)},
	OpFetchStaticPropUnset:   {"FETCH_STATIC_PROP_UNSET", sig(tmpVal, constTmp, classRef)},
	OpUnsetStaticProp:        {"UNSET_STATIC_PROP", sig(unused, constTmp, classRef)},
	OpIssetIsemptyStaticProp: {"ISSET_ISEMPTY_STATIC_PROP", sig(tmpVal, constTmp, classRef).ext(ExtRaw)},
	OpFetchClassConstant:     {"FETCH_CLASS_CONSTANT", sig(tmpVal, classRef, constVal)},

	// Closures, switches and builtins
	OpBindLexical:         {"BIND_LEXICAL", sig(unused, tmpVal, cvVal).ext(ExtRaw)},
	OpBindStatic:          {"BIND_STATIC", sig(unused, cvVal, unused).ext(ExtRaw)},
	OpFetchThis:           {"FETCH_THIS", sig(tmpVal, unused, unused)},
	OpSendFuncArg:         {"SEND_FUNC_ARG", sig(unused, tmpCV, sendArg)},
	OpIssetIsemptyThis:    {"ISSET_ISEMPTY_THIS", sig(tmpVal, unused, unused)},
	OpSwitchLong:          {"SWITCH_LONG", sig(unused, anyVal, constVal).ext(ExtJump)},
	OpSwitchString:        {"SWITCH_STRING", sig(unused, anyVal, constVal).ext(ExtJump)},
	OpInArray:             {"IN_ARRAY", sig(tmpVal, anyVal, constVal)},
	OpCount:               {"COUNT", sig(tmpVal, anyVal, unused)},
	OpGetClass:            {"GET_CLASS", sig(tmpVal, anyVal, unused)},
	OpGetCalledClass:      {"GET_CALLED_CLASS", sig(tmpVal, unused, unused)},
	OpGetType:             {"GET_TYPE", sig(tmpVal, anyVal, unused)},
	OpArrayKeyExists:      {"ARRAY_KEY_EXISTS", sig(tmpVal, anyVal, anyVal)},
	OpMatch:               {"MATCH", sig(tmpVal, anyVal, constVal).ext(ExtJump)},
	OpCaseStrict:          {"CASE_STRICT", sig(tmpVal, tmpVal, anyVal)},
	OpMatchError:          {"MATCH_ERROR", sig(unused, anyVal, unused)},
	OpJmpNull:             {"JMP_NULL", sig(tmpVal, anyVal, jump)},
	OpCheckUndefArgs:      {"CHECK_UNDEF_ARGS", sig(unused, unused, unused)},
	OpFetchGlobals:        {"FETCH_GLOBALS", sig(tmpVal, unused, unused)},
	OpVerifyNeverType:     {"VERIFY_NEVER_TYPE", sig(unused, unused, unused)},
	OpCallableConvert:     {"CALLABLE_CONVERT", sig(tmpVal, unused, unused)},
	OpBindInitStaticOrJmp: {"BIND_INIT_STATIC_OR_JMP", sig(unused, cvVal, jump)},
}

// Compound-assignment families carry the binary operator's opcode in the
// extended value.
var assignFamilies = []Opcode{OpAssignOp, OpAssignDimOp, OpAssignObjOp, OpAssignStaticPropOp}

var assignOperators = []Opcode{
	OpAdd, OpSub, OpMul, OpDiv, OpMod, OpSl, OpSr,
	OpConcat, OpBwOr, OpBwAnd, OpBwXor, OpPow,
}

// Include kinds carried by INCLUDE_OR_EVAL.
const (
	IncludeEval        uint32 = 1
	IncludeInclude     uint32 = 2
	IncludeIncludeOnce uint32 = 4
	IncludeRequire     uint32 = 8
	IncludeRequireOnce uint32 = 16
)

var includeNames = map[uint32]string{
	IncludeEval:        "EVAL",
	IncludeInclude:     "INCLUDE",
	IncludeIncludeOnce: "INCLUDE_ONCE",
	IncludeRequire:     "REQUIRE",
	IncludeRequireOnce: "REQUIRE_ONCE",
}

type familyKey struct {
	op  Opcode
	ext uint32
}

// familyTable holds the members of every opcode family, keyed by opcode
// and extended value. It is filled once from the base table.
var familyTable = buildFamilies()

func buildFamilies() map[familyKey]OpcodeInfo {
	fams := make(map[familyKey]OpcodeInfo)
	member := func(base Opcode, ext uint32, name string) {
		info := opcodeInfoTable[base]
		info.Name = name
		info.Sig.Ext = ExtNone
		fams[familyKey{base, ext}] = info
	}
	for _, fam := range assignFamilies {
		prefix := strings.TrimSuffix(opcodeInfoTable[fam].Name, "_OP")
		for _, bin := range assignOperators {
			member(fam, uint32(bin), prefix+"_"+opcodeInfoTable[bin].Name)
		}
	}
	for ext, name := range includeNames {
		member(OpIncludeOrEval, ext, name)
	}
	return fams
}

// Lookup returns the metadata for an instruction. Family opcodes are
// resolved through the extended value; a family member the table does not
// know keeps the family mnemonic and shows the extended value raw.
//
// For an opcode the table does not know at all, Lookup returns a raw
// signature and a mnemonic carrying the number, with ok false.
func Lookup(op Opcode, ext uint32) (info OpcodeInfo, ok bool) {
	base, ok := opcodeInfoTable[op]
	if !ok {
		return unknownInfo(op), false
	}
	if base.Sig.Ext != ExtFamily {
		return base, true
	}
	if member, found := familyTable[familyKey{op, ext}]; found {
		return member, true
	}
	base.Sig.Ext = ExtRaw
	return base, true
}

func unknownInfo(op Opcode) OpcodeInfo {
	return OpcodeInfo{
		Name: fmt.Sprintf("UNKNOWN(%d)", uint8(op)),
		Sig:  sig(rawVal, rawVal, rawVal).ext(ExtRaw),
	}
}

// GetOpcodeInfo returns metadata for an opcode without resolving families.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return unknownInfo(op)
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump reports whether the opcode can transfer control to another
// instruction of the same unit.
func (op Opcode) IsJump() bool {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return false
	}
	s := info.Sig
	return s.Op1.Kind == SlotJump || s.Op2.Kind == SlotJump || s.Ext == ExtJump
}

// FamilyMembers returns the mnemonics an opcode family forks into, sorted.
// It returns nil for opcodes that are not families.
func FamilyMembers(op Opcode) []string {
	var names []string
	for key, info := range familyTable {
		if key.op == op {
			names = append(names, info.Name)
		}
	}
	sort.Strings(names)
	return names
}

// AllOpcodes returns a slice of all defined opcodes in ascending order.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
