package network

import (
	"encoding/json"

	"github.com/jabolina/worker-sync/pkg/worker/types"
)

// batchSyncMethod is the fully qualified grpc method every worker
// dials. There is exactly one RPC in this service, so a real
// .proto-described service would be overkill; grpc.UnknownServiceHandler
// on the server side dispatches every call here regardless of method
// name, so this constant only needs to be stable between peers.
const batchSyncMethod = "/worker.sync.BatchSync/Request"

func encodeRequest(req *types.WorkerBatchRequest) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(data []byte) (*types.WorkerBatchRequest, error) {
	var req types.WorkerBatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func encodeResponse(resp *types.WorkerBatchResponse) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(data []byte) (*types.WorkerBatchResponse, error) {
	var resp types.WorkerBatchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
