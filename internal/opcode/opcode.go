// Package opcode defines the event bytecode's opcode vocabularies: script
// commands, expression operators, message commands, and the 32-bit type
// atoms that select command variants. Values match the GGTE01 engine tables.
package opcode

import "fmt"

// Cmd is a script command opcode.
type Cmd uint8

const (
	CmdAbort  Cmd = 1
	CmdReturn Cmd = 2
	CmdGoto   Cmd = 3
	CmdSet    Cmd = 4
	CmdIf     Cmd = 5
	CmdElif   Cmd = 6
	CmdEndIf  Cmd = 7
	CmdCase   Cmd = 8
	CmdExpr   Cmd = 9
	CmdWhile  Cmd = 10
	CmdBreak  Cmd = 11
	CmdRun    Cmd = 12
	CmdLib    Cmd = 13
	CmdPushBp Cmd = 14
	CmdPopBp  Cmd = 15
	CmdSetSp  Cmd = 16
	CmdAnim   Cmd = 17
	CmdAnim1  Cmd = 18
	CmdAnim2  Cmd = 19
	CmdAttach Cmd = 20
	CmdBorn   Cmd = 21
	CmdCall   Cmd = 22
	CmdCamera Cmd = 23
	CmdCheck  Cmd = 24
	CmdColor  Cmd = 25
	CmdDetach Cmd = 26
	CmdDir    Cmd = 27
	CmdMDir   Cmd = 28
	CmdDisp   Cmd = 29
	CmdKill   Cmd = 30
	CmdLight  Cmd = 31
	CmdMenu   Cmd = 32
	CmdMove   Cmd = 33
	CmdMoveTo Cmd = 34
	CmdMsg    Cmd = 35
	CmdPos    Cmd = 36
	CmdPrintF Cmd = 37
	CmdPtcl   Cmd = 38
	CmdRead   Cmd = 39
	CmdScale  Cmd = 40
	CmdMScale Cmd = 41
	CmdScrn   Cmd = 42
	CmdSelect Cmd = 43
	CmdSfx    Cmd = 44
	CmdTimer  Cmd = 45
	CmdWait   Cmd = 46
	CmdWarp   Cmd = 47
	CmdWin    Cmd = 48
	CmdMovie  Cmd = 49
)

var cmdNames = [...]string{
	CmdAbort: "abort", CmdReturn: "return", CmdGoto: "goto", CmdSet: "set",
	CmdIf: "if", CmdElif: "elif", CmdEndIf: "endif", CmdCase: "case",
	CmdExpr: "expr", CmdWhile: "while", CmdBreak: "break", CmdRun: "run",
	CmdLib: "lib", CmdPushBp: "pushbp", CmdPopBp: "popbp", CmdSetSp: "setsp",
	CmdAnim: "anim", CmdAnim1: "anim1", CmdAnim2: "anim2", CmdAttach: "attach",
	CmdBorn: "born", CmdCall: "call", CmdCamera: "camera", CmdCheck: "check",
	CmdColor: "color", CmdDetach: "detach", CmdDir: "dir", CmdMDir: "mdir",
	CmdDisp: "disp", CmdKill: "kill", CmdLight: "light", CmdMenu: "menu",
	CmdMove: "move", CmdMoveTo: "moveto", CmdMsg: "msg", CmdPos: "pos",
	CmdPrintF: "printf", CmdPtcl: "ptcl", CmdRead: "read", CmdScale: "scale",
	CmdMScale: "mscale", CmdScrn: "scrn", CmdSelect: "select", CmdSfx: "sfx",
	CmdTimer: "timer", CmdWait: "wait", CmdWarp: "warp", CmdWin: "win",
	CmdMovie: "movie",
}

func (c Cmd) Valid() bool {
	return c >= CmdAbort && c <= CmdMovie
}

func (c Cmd) String() string {
	if c.Valid() {
		return cmdNames[c]
	}
	return fmt.Sprintf("cmd(%d)", uint8(c))
}

// IsIf reports whether the command is a conditional branch: it carries a
// condition expression and an else target, and falls through when true.
func (c Cmd) IsIf() bool {
	switch c {
	case CmdIf, CmdElif, CmdCase, CmdExpr, CmdWhile:
		return true
	}
	return false
}

// IsGoto reports whether the command is an unconditional jump carrying a
// single target pointer.
func (c Cmd) IsGoto() bool {
	switch c {
	case CmdGoto, CmdEndIf, CmdBreak:
		return true
	}
	return false
}

// IsTerminator reports whether the command ends a code block.
func (c Cmd) IsTerminator() bool {
	return c == CmdAbort || c == CmdReturn || c.IsGoto() || c.IsIf()
}

// Expr is an expression operator opcode. Expressions are prefix-encoded:
// the operator byte comes first, followed by its immediate payload and
// child expressions (binary operators store the right side first).
type Expr uint8

const (
	ExprEqual        Expr = 0
	ExprNotEqual     Expr = 1
	ExprLess         Expr = 2
	ExprLessEqual    Expr = 3
	ExprGreater      Expr = 4
	ExprGreaterEqual Expr = 5
	ExprNot          Expr = 6
	ExprAdd          Expr = 7
	ExprSubtract     Expr = 8
	ExprMultiply     Expr = 9
	ExprDivide       Expr = 10
	ExprModulo       Expr = 11
	ExprBitAnd       Expr = 12
	ExprBitOr        Expr = 13
	ExprBitXor       Expr = 14
	ExprAddAssign    Expr = 15
	ExprSubAssign    Expr = 16
	ExprMulAssign    Expr = 17
	ExprDivAssign    Expr = 18
	ExprModAssign    Expr = 19
	ExprAndAssign    Expr = 20
	ExprOrAssign     Expr = 21
	ExprXorAssign    Expr = 22
	ExprImm16        Expr = 23
	ExprImm32        Expr = 24
	ExprAddressOf    Expr = 25
	ExprStack        Expr = 26
	ExprParentStack  Expr = 27
	ExprFlag         Expr = 28
	ExprVariable     Expr = 29
	ExprResult1      Expr = 30
	ExprResult2      Expr = 31
	ExprPad          Expr = 32
	ExprBattery      Expr = 100
	ExprMoney        Expr = 101
	ExprItem         Expr = 102
	ExprAtc          Expr = 103
	ExprRank         Expr = 104
	ExprExp          Expr = 105
	ExprLevel        Expr = 106
	ExprHold         Expr = 107
	ExprMap          Expr = 108
	ExprActorName    Expr = 109
	ExprItemName     Expr = 110
	ExprTime         Expr = 111
	ExprCurrentSuit  Expr = 112
	ExprScrap        Expr = 113
	ExprCurrentAtc   Expr = 114
	ExprUse          Expr = 115
	ExprHit          Expr = 116
	ExprStickerName  Expr = 117
	ExprObj          Expr = 200
	ExprRandom       Expr = 201
	ExprSin          Expr = 202
	ExprCos          Expr = 203
	ExprArrayElement Expr = 204
)

var exprNames = map[Expr]string{
	ExprEqual: "eq", ExprNotEqual: "ne", ExprLess: "lt", ExprLessEqual: "le",
	ExprGreater: "gt", ExprGreaterEqual: "ge", ExprNot: "not",
	ExprAdd: "add", ExprSubtract: "sub", ExprMultiply: "mul",
	ExprDivide: "div", ExprModulo: "mod", ExprBitAnd: "band",
	ExprBitOr: "bor", ExprBitXor: "bxor",
	ExprAddAssign: "adda", ExprSubAssign: "suba", ExprMulAssign: "mula",
	ExprDivAssign: "diva", ExprModAssign: "moda", ExprAndAssign: "banda",
	ExprOrAssign: "bora", ExprXorAssign: "bxora",
	ExprImm16: "imm16", ExprImm32: "imm32", ExprAddressOf: "addr",
	ExprStack: "stack", ExprParentStack: "pstack", ExprFlag: "flag",
	ExprVariable: "var", ExprResult1: "res1", ExprResult2: "res2",
	ExprPad: "pad", ExprBattery: "battery", ExprMoney: "money",
	ExprItem: "item", ExprAtc: "atc", ExprRank: "rank", ExprExp: "exp",
	ExprLevel: "level", ExprHold: "hold", ExprMap: "map",
	ExprActorName: "actorname", ExprItemName: "itemname", ExprTime: "time",
	ExprCurrentSuit: "suit", ExprScrap: "scrap", ExprCurrentAtc: "curatc",
	ExprUse: "use", ExprHit: "hit", ExprStickerName: "stickername",
	ExprObj: "obj", ExprRandom: "random", ExprSin: "sin", ExprCos: "cos",
	ExprArrayElement: "elem",
}

func (e Expr) Valid() bool {
	_, ok := exprNames[e]
	return ok
}

func (e Expr) String() string {
	if name, ok := exprNames[e]; ok {
		return name
	}
	return fmt.Sprintf("expr(%d)", uint8(e))
}

// Children returns the number of child expressions the operator consumes
// from the instruction stream. Immediate payloads (constants, slot indexes,
// pointers) are not children.
func (e Expr) Children() int {
	switch {
	case e == ExprNot:
		return 1
	case e <= ExprXorAssign:
		// Comparisons, arithmetic, and in-place operators are all binary.
		return 2
	}
	switch e {
	case ExprFlag, ExprVariable, ExprPad,
		ExprBattery, ExprItem, ExprAtc, ExprMap, ExprActorName,
		ExprItemName, ExprTime, ExprStickerName,
		ExprRandom, ExprSin, ExprCos:
		return 1
	case ExprObj:
		// Accessor atom plus one argument.
		return 2
	case ExprArrayElement:
		// Element type, index, base address.
		return 3
	}
	return 0
}

// IsConst reports whether the operator is an immediate constant.
func (e Expr) IsConst() bool {
	return e == ExprImm16 || e == ExprImm32
}

// IsAssign reports whether the operator updates its left side in place.
// The set command omits its target operand when its value is one of these.
func (e Expr) IsAssign() bool {
	return e >= ExprAddAssign && e <= ExprXorAssign
}

// IsBinary reports whether the operator takes left and right children,
// stored right-first on the wire.
func (e Expr) IsBinary() bool {
	return e <= ExprXorAssign && e != ExprNot
}

// Msg is a message-stream command opcode. Bytes 7, 8, 9 and values above
// MsgStay are literal characters, not commands.
type Msg uint8

const (
	MsgEnd          Msg = 0
	MsgSpeed        Msg = 1
	MsgWait         Msg = 2
	MsgAnim         Msg = 3
	MsgSfx          Msg = 4
	MsgVoice        Msg = 5
	MsgDefault      Msg = 6
	MsgNewline      Msg = 10
	MsgNewlineVt    Msg = 11
	MsgFormat       Msg = 12
	MsgSize         Msg = 13
	MsgColor        Msg = 14
	MsgRgba         Msg = 15
	MsgProportional Msg = 16
	MsgIcon         Msg = 17
	MsgShake        Msg = 18
	MsgCenter       Msg = 19
	MsgRotate       Msg = 20
	MsgScale        Msg = 21
	MsgNumInput     Msg = 22
	MsgQuestion     Msg = 23
	MsgStay         Msg = 24

	// MsgText is synthetic: a run of literal characters coalesced into one
	// text operand. It never appears as an opcode byte on the wire.
	MsgText Msg = 0xff
)

var msgNames = [...]string{
	MsgEnd: "end", MsgSpeed: "speed", MsgWait: "wait", MsgAnim: "anim",
	MsgSfx: "sfx", MsgVoice: "voice", MsgDefault: "default",
	MsgNewline: "newline", MsgNewlineVt: "newlinevt", MsgFormat: "format",
	MsgSize: "size", MsgColor: "color", MsgRgba: "rgba",
	MsgProportional: "prop", MsgIcon: "icon", MsgShake: "shake",
	MsgCenter: "center", MsgRotate: "rotate", MsgScale: "scale",
	MsgNumInput: "numinput", MsgQuestion: "question", MsgStay: "stay",
}

func (m Msg) String() string {
	if m == MsgText {
		return "text"
	}
	if int(m) < len(msgNames) && msgNames[m] != "" {
		return msgNames[m]
	}
	return fmt.Sprintf("msg(%d)", uint8(m))
}

// MsgIsChar reports whether a stream byte is a literal character rather
// than a message command. Bell, backspace, and tab are characters.
func MsgIsChar(b byte) bool {
	if b > uint8(MsgStay) {
		return true
	}
	return b == 7 || b == 8 || b == 9
}

// Message wait-type bytes with special meaning.
const (
	MsgWaitSuitMenu  = 252
	MsgWaitAtcMenu   = 253
	MsgWaitLeftPlug  = 254
	MsgWaitRightPlug = 255
)

// Code is the constraint over the three opcode vocabularies, letting one
// generic operation shape serve commands, expressions, and message
// commands.
type Code interface {
	Cmd | Expr | Msg
}

// Name returns the mnemonic for an opcode of any vocabulary.
func Name[T Code](op T) string {
	switch v := any(op).(type) {
	case Cmd:
		return v.String()
	case Expr:
		return v.String()
	case Msg:
		return v.String()
	}
	return ""
}

// Atom is a 32-bit type tag carried on the wire as a constant expression.
// Atoms select the variant of atom-dispatched commands and object
// accessors.
type Atom int32

const (
	AtomTime     Atom = 200
	AtomUnk201   Atom = 201
	AtomWipe     Atom = 202
	AtomUnk203   Atom = 203
	AtomAnim     Atom = 204
	AtomDir      Atom = 205
	AtomMove     Atom = 206
	AtomPos      Atom = 207
	AtomObj      Atom = 208
	AtomUnk209   Atom = 209
	AtomUnk210   Atom = 210
	AtomUnk211   Atom = 211
	AtomPosX     Atom = 212
	AtomPosY     Atom = 213
	AtomPosZ     Atom = 214
	AtomBoneX    Atom = 215
	AtomBoneY    Atom = 216
	AtomBoneZ    Atom = 217
	AtomDirTo    Atom = 218
	AtomColor    Atom = 219
	AtomLead     Atom = 220
	AtomSfx      Atom = 221
	AtomModulate Atom = 222
	AtomBlend    Atom = 223
	AtomReal     Atom = 224
	AtomCam      Atom = 225
	AtomUnk226   Atom = 226
	AtomUnk227   Atom = 227
	AtomDistance Atom = 228
	AtomUnk229   Atom = 229
	AtomUnk230   Atom = 230
	AtomUnk231   Atom = 231
	AtomUnk232   Atom = 232
	AtomRead     Atom = 233
	AtomUnk234   Atom = 234
	AtomUnk235   Atom = 235
	AtomUnk236   Atom = 236
	AtomUnk237   Atom = 237
	AtomUnk238   Atom = 238
	AtomUnk239   Atom = 239
	AtomUnk240   Atom = 240
	AtomUnk241   Atom = 241
	AtomUnk242   Atom = 242
	AtomUnk243   Atom = 243
	AtomScale    Atom = 244
	AtomCue      Atom = 245
	AtomUnk246   Atom = 246
	AtomUnk247   Atom = 247
	AtomUnk248   Atom = 248
	AtomUnk249   Atom = 249
	AtomUnk250   Atom = 250
	AtomUnk251   Atom = 251
	AtomUnk252   Atom = 252
)

var atomNames = map[Atom]string{
	AtomTime: "time", AtomUnk201: "unk201", AtomWipe: "wipe",
	AtomUnk203: "unk203", AtomAnim: "anim", AtomDir: "dir", AtomMove: "move",
	AtomPos: "pos", AtomObj: "obj", AtomUnk209: "unk209",
	AtomUnk210: "unk210", AtomUnk211: "unk211", AtomPosX: "posx",
	AtomPosY: "posy", AtomPosZ: "posz", AtomBoneX: "bonex",
	AtomBoneY: "boney", AtomBoneZ: "bonez", AtomDirTo: "dirto",
	AtomColor: "color", AtomLead: "lead", AtomSfx: "sfx",
	AtomModulate: "modulate", AtomBlend: "blend", AtomReal: "real",
	AtomCam: "cam", AtomUnk226: "unk226", AtomUnk227: "unk227",
	AtomDistance: "distance", AtomUnk229: "unk229", AtomUnk230: "unk230",
	AtomUnk231: "unk231", AtomUnk232: "unk232", AtomRead: "read",
	AtomUnk234: "unk234", AtomUnk235: "unk235", AtomUnk236: "unk236",
	AtomUnk237: "unk237", AtomUnk238: "unk238", AtomUnk239: "unk239",
	AtomUnk240: "unk240", AtomUnk241: "unk241", AtomUnk242: "unk242",
	AtomUnk243: "unk243", AtomScale: "scale", AtomCue: "cue",
	AtomUnk246: "unk246", AtomUnk247: "unk247", AtomUnk248: "unk248",
	AtomUnk249: "unk249", AtomUnk250: "unk250", AtomUnk251: "unk251",
	AtomUnk252: "unk252",
}

func (a Atom) Valid() bool {
	_, ok := atomNames[a]
	return ok
}

func (a Atom) String() string {
	if name, ok := atomNames[a]; ok {
		return name
	}
	return fmt.Sprintf("atom(%d)", int32(a))
}
