package faultx

// BlobTable classifies S3-compatible object store failures (AWS S3, MinIO, R2).
func BlobTable() Table {
	return Table{
		Domain:          DomainBlob,
		NotFoundStatus:  notFoundHTTPStatus,
		AuthStatus:      authHTTPStatus,
		TransientStatus: transientHTTPStatus,
		NotFoundCodes:   []string{"NoSuchBucket", "NoSuchKey", "NotFound"},
		AuthCodes: []string{
			"AccessDenied",
			"ExpiredToken",
			"InvalidAccessKeyId",
			"InvalidToken",
			"SignatureDoesNotMatch",
			"Unauthorized",
		},
		TransientCodes: []string{"SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable"},
	}
}

// VectorTable classifies vector store failures reported over HTTP.
func VectorTable() Table {
	return Table{
		Domain:          DomainVector,
		NotFoundStatus:  notFoundHTTPStatus,
		AuthStatus:      authHTTPStatus,
		TransientStatus: transientHTTPStatus,
	}
}

// DocumentTable classifies document store failures by server code name.
func DocumentTable() Table {
	return Table{
		Domain:    DomainDocument,
		AuthCodes: []string{"Unauthorized", "AuthenticationFailed"},
		TransientCodes: []string{
			"HostUnreachable",
			"HostNotFound",
			"NetworkTimeout",
			"ShutdownInProgress",
			"PrimarySteppedDown",
			"NotWritablePrimary",
			"InterruptedAtShutdown",
			"InterruptedDueToReplStateChange",
			"ExceededTimeLimit",
		},
		NotFoundCodes: []string{"NamespaceNotFound"},
	}
}

// BrokerTable classifies AMQP failures by reply code.
// 320 connection-forced, 506 resource-error and 541 internal-error close the
// channel but leave the broker usable.
func BrokerTable() Table {
	return Table{
		Domain:          DomainBroker,
		NotFoundStatus:  []int{404},
		AuthStatus:      []int{403},
		TransientStatus: []int{320, 506, 541},
	}
}

// CacheTable classifies Redis failures by the leading word of the server reply.
// Callers set ExtractCode to read that word from their client's error type.
func CacheTable() Table {
	return Table{
		Domain:         DomainCache,
		AuthCodes:      []string{"NOAUTH", "WRONGPASS", "NOPERM"},
		TransientCodes: []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "READONLY"},
	}
}

// SQLTable is the base table for relational stores. Drivers add Classifiers
// for their own error types.
func SQLTable() Table {
	return Table{Domain: DomainSQL}
}
