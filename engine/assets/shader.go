package assets

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/prism/engine/renderer/gpu"
)

const (
	spirvMagic = 0x07230203
	// spirvHeaderWords is the magic, version, generator, bound and schema.
	spirvHeaderWords = 5
)

var ErrInvalidSPIRV = errors.New("invalid SPIR-V module")

// ShaderFile is the compiled module name for a shader stage, e.g.
// "mesh.vert.spv".
func ShaderFile(name string, stage gpu.ShaderStage) string {
	return fmt.Sprintf("%s.%s.spv", name, stage)
}

// ValidateSPIRV checks the header of a little-endian SPIR-V module.
func ValidateSPIRV(code []byte) error {
	if len(code)%4 != 0 {
		return errors.Mark(errors.Newf("size %d is not a multiple of 4", len(code)), ErrInvalidSPIRV)
	}
	if len(code) < spirvHeaderWords*4 {
		return errors.Mark(errors.Newf("size %d is shorter than the header", len(code)), ErrInvalidSPIRV)
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return errors.Mark(errors.Newf("bad magic %#08x", magic), ErrInvalidSPIRV)
	}
	return nil
}

// LoadShader reads the compiled module of a shader stage from the shader
// directory.
func (am *AssetManager) LoadShader(name string, stage gpu.ShaderStage) ([]byte, error) {
	path := filepath.Join(am.shaders, ShaderFile(name, stage))
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %s", path)
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	return code, nil
}
