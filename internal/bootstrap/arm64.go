package bootstrap

// arm64 entry: reserve a pthread_t on the stack, call
// pthread_create_from_mach_thread(&tid, NULL, start, path), store the marker,
// branch to self. start tail-calls dlopen(path, RTLD_NOW).

const (
	x16 = 16
	w17 = 17
)

// movImm64 loads imm into xd with movz and three movk.
func movImm64(code []byte, rd uint32, imm uint64) []byte {
	code = le.AppendUint32(code, 0xD2800000|uint32(imm&0xFFFF)<<5|rd)
	for hw := uint32(1); hw < 4; hw++ {
		part := uint32(imm>>(16*hw)) & 0xFFFF
		code = le.AppendUint32(code, 0xF2800000|hw<<21|part<<5|rd)
	}
	return code
}

func buildARM64(p Params) []byte {
	const startOffset = 96

	code := make([]byte, 0, startOffset+24)
	code = le.AppendUint32(code, 0xD10043FF) // sub sp, sp, #16
	code = le.AppendUint32(code, 0x910003E0) // mov x0, sp
	code = le.AppendUint32(code, 0xAA1F03E1) // mov x1, xzr
	code = movImm64(code, 2, p.Code+startOffset)
	code = movImm64(code, 3, p.Data+PathOffset)
	code = movImm64(code, x16, p.PthreadCreate)
	code = le.AppendUint32(code, 0xD63F0200) // blr x16
	code = movImm64(code, x16, p.Data+MarkerOffset)
	code = le.AppendUint32(code, 0x52800000|(Marker&0xFFFF)<<5|w17)    // movz w17, #lo
	code = le.AppendUint32(code, 0x72800000|1<<21|(Marker>>16)<<5|w17) // movk w17, #hi, lsl 16
	code = le.AppendUint32(code, 0xB9000211)                           // str w17, [x16]
	code = le.AppendUint32(code, 0x14000000)                           // b .

	for len(code) < startOffset {
		code = le.AppendUint32(code, 0xD4200000) // brk #0
	}

	code = le.AppendUint32(code, 0x52800000|rtldNow<<5|1) // movz w1, #RTLD_NOW
	code = movImm64(code, x16, p.Dlopen)
	code = le.AppendUint32(code, 0xD61F0200) // br x16
	return code
}
