//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles every GLSL stage under shaders/ to SPIR-V in assets/shaders.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders, then the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Building engine...")
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/prism", "."), withStream()); err != nil {
		return err
	}
	return nil
}
