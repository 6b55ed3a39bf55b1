package ftpd

// FTP reply codes used by this server (RFC-959, RFC-3659). Named the
// way the response is actually used rather than after the RFC section.
const (
	StatusDataConnectionOpen       = 125
	StatusFileStatusOK             = 150 // about to open data connection
	StatusOK                       = 200
	StatusCommandNotNeeded         = 202 // ALLO: no storage allocation necessary
	StatusSystemStatus             = 211
	StatusDirectoryStatus          = 213
	StatusFileStatus               = 213
	StatusSystemType               = 215
	StatusServiceReady             = 220
	StatusClosingControlConn       = 221
	StatusAbortCommandOK           = 225
	StatusClosingDataConn          = 226
	StatusEnteringPASV             = 227
	StatusUserLoggedIn             = 230
	StatusFileOK                   = 250
	StatusPathCreated              = 257
	StatusUserOK                   = 331
	StatusRestartMarker            = 350
	StatusServiceNotAvailable      = 421
	StatusCannotOpenDataConn       = 425
	StatusConnectionClosed         = 426
	StatusActionNotTaken           = 450
	StatusSyntaxErrorNotRecognised = 500
	StatusSyntaxErrorParameters    = 501
	StatusCommandNotImplemented    = 502
	StatusBadCommandSequence       = 503
	StatusParameterNotImplemented  = 504
	StatusNotLoggedIn              = 530
	StatusActionNotTakenNoFile     = 550
	StatusInvalidRESTParameter     = 554
)
