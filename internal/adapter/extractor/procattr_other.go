//go:build !unix

package extractor

import "os/exec"

// configureProcessGroup на прочих платформах оставляет поведение exec по умолчанию
func configureProcessGroup(cmd *exec.Cmd) {}
