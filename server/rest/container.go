package rest

// Container wires the job service and its HTTP handler. Every call builds a
// fresh pair bound to args.
func Container(args *ContainerArgs) (*Service, *Handler) {
	svc := NewService(args)
	return svc, NewHandler(svc)
}
