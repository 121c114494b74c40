package armcore_test

import "github.com/corefleet/simdbg/armcore"

// Helper function to enable write permissions on code segment
func setupCodeWrite(v *armcore.VM) {
	for _, seg := range v.Memory.Segments {
		if seg.Name == "code" {
			seg.Permissions = armcore.PermRead | armcore.PermWrite | armcore.PermExecute
		}
	}
}
