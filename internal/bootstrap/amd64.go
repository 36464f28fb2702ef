package bootstrap

// amd64 entry: build a frame, call
// pthread_create_from_mach_thread(&tid, NULL, start, path), store the marker,
// spin. start tail-calls dlopen(path, RTLD_NOW).

func movabs(code []byte, op byte, imm uint64) []byte {
	code = append(code, 0x48, op)
	return le.AppendUint64(code, imm)
}

func buildAMD64(p Params) []byte {
	const startOffset = 64

	code := make([]byte, 0, startOffset+32)
	code = append(code,
		0x55,                   // push rbp
		0x48, 0x89, 0xe5,       // mov rbp, rsp
		0x48, 0x83, 0xec, 0x10, // sub rsp, 16
		0x48, 0x8d, 0x7d, 0xf8, // lea rdi, [rbp-8]
		0x31, 0xf6,             // xor esi, esi
	)
	code = movabs(code, 0xba, p.Code+startOffset)  // mov rdx, start
	code = movabs(code, 0xb9, p.Data+PathOffset)   // mov rcx, path
	code = movabs(code, 0xb8, p.PthreadCreate)     // mov rax, pthread_create_from_mach_thread
	code = append(code, 0xff, 0xd0)                // call rax
	code = movabs(code, 0xb8, p.Data+MarkerOffset) // mov rax, marker slot
	code = append(code, 0xc7, 0x00)                // mov dword [rax], imm32
	code = le.AppendUint32(code, Marker)
	code = append(code, 0xeb, 0xfe) // jmp .

	for len(code) < startOffset {
		code = append(code, 0xcc)
	}

	code = append(code, 0xbe) // mov esi, RTLD_NOW
	code = le.AppendUint32(code, rtldNow)
	code = movabs(code, 0xb8, p.Dlopen) // mov rax, dlopen
	code = append(code, 0xff, 0xe0)     // jmp rax
	return code
}
