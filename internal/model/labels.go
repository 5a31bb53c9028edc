package model

const (
	// EthLatestBlock represents the latest block identifier in Ethereum.
	EthLatestBlock = "latest"

	// EthPendingBlock represents the pending block identifier in Ethereum.
	EthPendingBlock = "pending"

	// EthBlockNumber represents the method for retrieving the current block number.
	EthBlockNumber = "eth_blockNumber"

	// EthGetBlockByNumber represents the method for retrieving a block by its number.
	EthGetBlockByNumber = "eth_getBlockByNumber"

	// EthGetBlockByHash represents the method for retrieving a block by its hash.
	EthGetBlockByHash = "eth_getBlockByHash"

	// EthGetTransactionByHash represents the method for retrieving a transaction by its hash.
	EthGetTransactionByHash = "eth_getTransactionByHash"

	// EthGetTransactionCount represents the method for retrieving transaction count for an address.
	EthGetTransactionCount = "eth_getTransactionCount"

	// EthGetTransactionReceipt represents the method for retrieving a transaction receipt.
	EthGetTransactionReceipt = "eth_getTransactionReceipt"

	// EthSendRawTransaction represents the method for sending a raw transaction to the network.
	EthSendRawTransaction = "eth_sendRawTransaction"

	// EthSendTransaction represents the method for sending a node-signed transaction.
	EthSendTransaction = "eth_sendTransaction"

	// EthEstimateGas represents the method for estimating the gas a transaction consumes.
	EthEstimateGas = "eth_estimateGas"

	// EthGasPrice represents the method for retrieving the node's suggested gas price.
	EthGasPrice = "eth_gasPrice"

	// EthChainID represents the method for retrieving the EIP-155 chain id.
	EthChainID = "eth_chainId"

	// EthGetBalance represents the method for retrieving the balance of an address.
	EthGetBalance = "eth_getBalance"

	// EthGetCode represents the method for retrieving the code at an address.
	EthGetCode = "eth_getCode"

	// EthGetLogs represents the method for retrieving logs matching a query without a filter.
	EthGetLogs = "eth_getLogs"

	// EthCall represents the method for executing a read-only message call.
	EthCall = "eth_call"

	// NetVersion represents the method for retrieving the network id.
	NetVersion = "net_version"

	// EthNewFilter represents the method for installing a log filter.
	EthNewFilter = "eth_newFilter"

	// EthNewBlockFilter represents the method for installing a new-block filter.
	EthNewBlockFilter = "eth_newBlockFilter"

	// EthNewPendingTransactionFilter represents the method for installing a pending-transaction filter.
	EthNewPendingTransactionFilter = "eth_newPendingTransactionFilter"

	// EthGetFilterChanges represents the method for polling a filter for entries since the last poll.
	EthGetFilterChanges = "eth_getFilterChanges"

	// EthGetFilterLogs represents the method for retrieving every log matching a log filter.
	EthGetFilterLogs = "eth_getFilterLogs"

	// EthUninstallFilter represents the method for removing a filter from the node.
	EthUninstallFilter = "eth_uninstallFilter"
)

const (
	// BlockExtraData is the extra data field of a block.
	BlockExtraData = "extraData"

	// BlockProofOfAuthorityData is the field that receives oversize extra data on proof-of-authority chains.
	BlockProofOfAuthorityData = "proofOfAuthorityData"

	// BlockGasLimit represents the gas limit field of a block.
	BlockGasLimit = "gasLimit"

	// TxFrom represents the sender field of a transaction.
	TxFrom = "from"

	// TxTo represents the recipient field of a transaction.
	TxTo = "to"

	// TxGasPrice represents the gas price field of a transaction.
	TxGasPrice = "gasPrice"
)
