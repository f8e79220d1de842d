package glscene

import (
	"log"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// ShaderManager owns the single shader program every tile draws through: a
// flat-shaded pipeline that multiplies each vertex by a view transform and
// passes its per-vertex color straight to the fragment stage.
type ShaderManager struct {
	program    uint32
	uTransform int32
}

// The vertex shader carries no lighting or texturing, just the affine
// transform baked into a 4x4 matrix uniform each frame.
const tileVertexShader = `
#version 330 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec4 aColor;

uniform mat4 uTransform;

out vec4 vColor;

void main() {
    gl_Position = uTransform * vec4(aPos, 0.0, 1.0);
    vColor = aColor;
}
` + "\x00"

const tileFragmentShader = `
#version 330 core
in vec4 vColor;
out vec4 FragColor;

void main() {
    FragColor = vColor;
}
` + "\x00"

// shaderStage pairs a shader's source with its GL stage enum, so compiling
// both stages can share one code path.
type shaderStage struct {
	source string
	kind   uint32
}

// NewShaderManager compiles and links the tile shader program. Compilation
// failures are fatal: there is no fallback rendering path without a working
// program.
func NewShaderManager() *ShaderManager {
	sm := &ShaderManager{}

	stages := []shaderStage{
		{source: tileVertexShader, kind: gl.VERTEX_SHADER},
		{source: tileFragmentShader, kind: gl.FRAGMENT_SHADER},
	}

	compiled := make([]uint32, len(stages))
	for i, stage := range stages {
		compiled[i] = sm.compileShader(stage.source, stage.kind)
		defer gl.DeleteShader(compiled[i])
	}

	sm.program = gl.CreateProgram()
	for _, shader := range compiled {
		gl.AttachShader(sm.program, shader)
	}
	gl.LinkProgram(sm.program)
	mustCheckStatus(sm.program, gl.LINK_STATUS, "link")

	sm.uTransform = gl.GetUniformLocation(sm.program, gl.Str("uTransform\x00"))
	gl.UseProgram(sm.program)
	return sm
}

// SetTransform uploads a column-major 4x4 transform matrix to the bound
// program's uTransform uniform.
func (sm *ShaderManager) SetTransform(matrix [16]float32) {
	gl.UniformMatrix4fv(sm.uTransform, 1, false, &matrix[0])
}

func (sm *ShaderManager) compileShader(source string, kind uint32) uint32 {
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)
	mustCheckStatus(shader, gl.COMPILE_STATUS, "compile")
	return shader
}

// mustCheckStatus reads back a shader or program's pass/fail status for the
// given query and aborts with the driver's info log on failure. phase is
// just for the log message ("compile" vs "link").
func mustCheckStatus(object uint32, query uint32, phase string) {
	var status int32
	var logLength int32
	isProgram := query == gl.LINK_STATUS

	if isProgram {
		gl.GetProgramiv(object, query, &status)
	} else {
		gl.GetShaderiv(object, query, &status)
	}
	if status != gl.FALSE {
		return
	}

	if isProgram {
		gl.GetProgramiv(object, gl.INFO_LOG_LENGTH, &logLength)
	} else {
		gl.GetShaderiv(object, gl.INFO_LOG_LENGTH, &logLength)
	}
	logText := strings.Repeat("\x00", int(logLength+1))
	if isProgram {
		gl.GetProgramInfoLog(object, logLength, nil, gl.Str(logText))
	} else {
		gl.GetShaderInfoLog(object, logLength, nil, gl.Str(logText))
	}
	log.Fatalf("shader %s failed: %s", phase, logText)
}
