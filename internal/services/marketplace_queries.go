package services

// GraphQL documents sent to the Ronin marketplace

const queryTokenData = `
query GetTokenData($tokenAddress: String) {
  tokenData(tokenAddress: $tokenAddress) {
    tokenAddress
    volumeAllTime
    totalOwners
    totalItems
    totalListing
    minPrice
  }
}`

const queryTokenCount = `
query GetERC721TokensCount($tokenAddress: String, $auctionType: AuctionType, $criteria: [SearchCriteria!], $from: Int!, $size: Int!, $sort: SortBy, $rangeCriteria: [RangeSearchCriteria!]) {
  erc721Tokens(
    tokenAddress: $tokenAddress
    auctionType: $auctionType
    criteria: $criteria
    from: $from
    size: $size
    sort: $sort
    rangeCriteria: $rangeCriteria
  ) {
    total
  }
}`

const queryTokenFloor = `
query GetERC721TokensList($tokenAddress: String, $auctionType: AuctionType, $criteria: [SearchCriteria!], $from: Int!, $size: Int!, $sort: SortBy, $rangeCriteria: [RangeSearchCriteria!]) {
  erc721Tokens(
    tokenAddress: $tokenAddress
    auctionType: $auctionType
    criteria: $criteria
    from: $from
    size: $size
    sort: $sort
    rangeCriteria: $rangeCriteria
  ) {
    total
    results {
      tokenId
      name
      order {
        id
        currentPrice
        basePrice
      }
    }
  }
}`

const queryActivities = `
query GetCollectionActivities($tokenAddress: String!, $activityTypes: [ActivityType!]!, $size: Int!) {
  activities(tokenAddress: $tokenAddress, activityTypes: $activityTypes, size: $size) {
    results {
      activityType
      id
      timestamp
      txHash
      metadata
      from
      to
      fromProfile {
        name
      }
      toProfile {
        name
      }
      asset {
        token {
          ... on Erc721 {
            erc721TokenId: tokenId
            erc721Name: name
            erc721Image: image
            erc721CdnImage: cdnImage
          }
          ... on Erc1155 {
            erc1155TokenId: tokenId
            erc1155Name: name
            erc1155Image: image
            erc1155CdnImage: cdnImage
          }
        }
      }
    }
  }
}`

const queryTopOffer = `
query GetERC721TopOffer($tokenAddress: String!, $tokenId: String!) {
  bestCollectionAndTraitOffersForNft(tokenAddress: $tokenAddress, tokenId: $tokenId) {
    id
    itemPrice
    paymentToken
  }
  erc721Token(tokenAddress: $tokenAddress, tokenId: $tokenId) {
    highestOffer {
      id
      currentPrice
      paymentToken
    }
  }
}`
